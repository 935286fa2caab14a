package pool

// ProgramConfig holds the tunable rate parameters of an incentive program.
type ProgramConfig struct {
	PeriodAmount uint64 // incentive-token units distributed per full interval
	IntervalMs   int64  // length of one allocation period, in milliseconds
}

// IncentiveProgram is one independently-parameterized distribution
// schedule attached to a pool. ID is stable and assigned at creation;
// it is distinct from the program's position in Pool.Programs (the
// program_idx used by the positional API), and it is what user ledgers
// snapshot against -- never look a program up by position when harvesting.
type IncentiveProgram struct {
	ID             string
	TokenType      string
	Config         ProgramConfig
	Active         bool
	LastAllocateMs int64
	PriceIndex     uint64 // units of (incentive-token units x 1e9) per share
	Balance        uint64
}

// newIncentiveProgram creates a fresh program. The initial LastAllocateMs
// is deliberately *not* rounded to an interval boundary: the first period
// accrues from exactly nowMs rather than retroactively from the previous
// interval boundary, so pre-existing stakers never receive an allocation
// for time before the program existed.
func newIncentiveProgram(id, tokenType string, initialBalance, periodAmount uint64, intervalMs int64, nowMs int64) (*IncentiveProgram, error) {
	if initialBalance == 0 {
		return nil, ErrZeroIncentive
	}
	if periodAmount == 0 {
		return nil, ErrZeroPeriodAmount
	}
	if intervalMs <= 0 {
		return nil, ErrInvalidIntervalMs
	}
	return &IncentiveProgram{
		ID:        id,
		TokenType: tokenType,
		Config: ProgramConfig{
			PeriodAmount: periodAmount,
			IntervalMs:   intervalMs,
		},
		Active:         true,
		LastAllocateMs: nowMs,
		PriceIndex:     0,
		Balance:        initialBalance,
	}, nil
}

// deactivate freezes the program's index in place: allocate_incentive will
// skip it entirely until it is reactivated. Does not advance the index.
func (p *IncentiveProgram) deactivate(tokenType string) error {
	if p.TokenType != tokenType {
		return NewError(TokenTypeMismatch, "incentive token type does not match program", nil)
	}
	if !p.Active {
		return NewError(AlreadyDeactivated, "program is already deactivated", nil)
	}
	p.Active = false
	return nil
}

// activate is the inverse of deactivate.
func (p *IncentiveProgram) activate(tokenType string) error {
	if p.TokenType != tokenType {
		return NewError(TokenTypeMismatch, "incentive token type does not match program", nil)
	}
	if p.Active {
		return NewError(AlreadyActivated, "program is already active", nil)
	}
	p.Active = true
	return nil
}

// updateConfig changes the program's rate parameters. It does NOT call
// allocate_incentive first -- per spec, the new rate retroactively applies
// to the unallocated window since LastAllocateMs unless the caller passes
// forcePreAllocate to the owning Pool.UpdateIncentiveConfig. Nil fields
// leave the corresponding parameter unchanged.
func (p *IncentiveProgram) updateConfig(newPeriodAmount *uint64, newIntervalMs *int64) error {
	if newPeriodAmount != nil {
		if *newPeriodAmount == 0 {
			return ErrZeroPeriodAmount
		}
		p.Config.PeriodAmount = *newPeriodAmount
	}
	if newIntervalMs != nil {
		if *newIntervalMs <= 0 {
			return ErrInvalidIntervalMs
		}
		p.Config.IntervalMs = *newIntervalMs
	}
	return nil
}
