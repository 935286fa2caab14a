package pool

// DeactivatingTranche is a bundle of shares moving through the unlock
// countdown. It earns incentives only up to the index snapshot captured
// at the moment of unsubscription: once a ledger's last-seen index for a
// program passes that snapshot, the tranche contributes nothing further
// from that program.
type DeactivatingTranche struct {
	Shares                   uint64
	UnsubscribedMs           int64
	UnlockedMs               int64
	SnapshotIndexByProgramID map[string]uint64
}

// UserShareLedger is one user's record within a pool: active shares that
// earn incentives, plus zero or more deactivating tranches counting down
// to withdrawable.
type UserShareLedger struct {
	User               string
	LastStakeMs        int64
	ActiveShares       uint64
	Deactivating       []*DeactivatingTranche
	LastIndexByProgram map[string]uint64 // program id -> last-observed price index
}

// TotalShares is ActiveShares plus every deactivating tranche's shares.
func (l *UserShareLedger) TotalShares() uint64 {
	total := l.ActiveShares
	for _, tr := range l.Deactivating {
		total += tr.Shares
	}
	return total
}

// TotalDeactivatingShares sums shares across all deactivating tranches.
func (l *UserShareLedger) TotalDeactivatingShares() uint64 {
	var total uint64
	for _, tr := range l.Deactivating {
		total += tr.Shares
	}
	return total
}

// isEmpty reports whether the ledger has nothing left to track and should
// be destroyed.
func (l *UserShareLedger) isEmpty() bool {
	return l.ActiveShares == 0 && len(l.Deactivating) == 0
}

func newUserShareLedger(user string) *UserShareLedger {
	return &UserShareLedger{
		User:               user,
		Deactivating:       make([]*DeactivatingTranche, 0),
		LastIndexByProgram: make(map[string]uint64),
	}
}

// snapshotIndexes copies the current per-program price index of every
// program in the registry, keyed by program id.
func snapshotIndexes(programs []*IncentiveProgram) map[string]uint64 {
	snap := make(map[string]uint64, len(programs))
	for _, p := range programs {
		snap[p.ID] = p.PriceIndex
	}
	return snap
}
