package pool

// Event is the common interface implemented by every emitted event. The
// core only defines what events occur and their contents; publishing them
// (HTTP push, websocket broadcast, durable audit log) is an external
// collaborator's job -- see api.EventBus and auditlog.Recorder.
type Event interface {
	EventName() string
}

type NewPoolEvent struct {
	PoolID            string
	StakeTokenType    string
	UnlockCountdownMs int64
}

func (NewPoolEvent) EventName() string { return "NewPool" }

type CreateIncentiveProgramEvent struct {
	PoolID       string
	ProgramID    string
	TokenType    string
	PeriodAmount uint64
	IntervalMs   int64
}

func (CreateIncentiveProgramEvent) EventName() string { return "CreateIncentiveProgram" }

type DeactivateIncentiveProgramEvent struct {
	PoolID    string
	ProgramID string
}

func (DeactivateIncentiveProgramEvent) EventName() string { return "DeactivateIncentiveProgram" }

type ActivateIncentiveProgramEvent struct {
	PoolID    string
	ProgramID string
}

func (ActivateIncentiveProgramEvent) EventName() string { return "ActivateIncentiveProgram" }

type RemoveIncentiveProgramEvent struct {
	PoolID          string
	ProgramID       string
	ReturnedBalance Coin
}

func (RemoveIncentiveProgramEvent) EventName() string { return "RemoveIncentiveProgram" }

type UpdateUnlockCountdownEvent struct {
	PoolID  string
	NewMs   int64
}

func (UpdateUnlockCountdownEvent) EventName() string { return "UpdateUnlockCountdownTsMs" }

type UpdateIncentiveConfigEvent struct {
	PoolID    string
	ProgramID string
}

func (UpdateIncentiveConfigEvent) EventName() string { return "UpdateIncentiveConfig" }

// StakeEvent's StakeAmount reports the user's total_shares *after* the
// stake, matching spec.md's event contract.
type StakeEvent struct {
	PoolID            string
	TokenType         string
	User              string
	StakeAmount       uint64
	StakeTsMs         int64
	LastIndexSnapshot map[string]uint64
}

func (StakeEvent) EventName() string { return "Stake" }

type UnsubscribeEvent struct {
	PoolID            string
	TokenType         string
	User              string
	UnsubscribedShares uint64
	UnsubscribeTsMs   int64
	UnlockedTsMs      int64
}

func (UnsubscribeEvent) EventName() string { return "Unsubscribe" }

type UnstakeEvent struct {
	PoolID       string
	TokenType    string
	User         string
	UnstakeAmount uint64
	UnstakeTsMs  int64
}

func (UnstakeEvent) EventName() string { return "Unstake" }

type HarvestEvent struct {
	PoolID              string
	IncentiveTokenType  string
	User                string
	HarvestAmount       uint64
}

func (HarvestEvent) EventName() string { return "Harvest" }
