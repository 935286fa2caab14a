package pool

// EngineConfig carries process-wide defaults for the pool registry,
// mirroring the teacher's TokenomicsConfig shape (a single struct of
// tunables with a NewDefault constructor).
type EngineConfig struct {
	MinUnlockCountdownMs int64 // floor enforced by Manager.NewPool on top of Pool's own >0 check
	MaxProgramsPerPool   int   // 0 means unbounded
}

// NewDefaultEngineConfig returns the engine's out-of-the-box defaults.
func NewDefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MinUnlockCountdownMs: 60_000, // at least one minute
		MaxProgramsPerPool:   64,
	}
}
