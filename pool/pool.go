package pool

import "fmt"

// Pool is the top-level accounting unit: one stake-token balance and zero
// or more incentive programs. Pool is created once by an admin action and
// never destroyed.
type Pool struct {
	ID                string
	StakeTokenType    string
	UnlockCountdownMs int64
	Active            bool // reserved for admin pause; not gating in current semantics
	TotalActiveShares uint64
	nextIncentiveID   uint64
	StakeBalance      uint64
	Programs          []*IncentiveProgram
	UserShares        map[string]*UserShareLedger
}

// NewPool creates a fresh pool and mints its first admin capability. id
// should be a caller-assigned, globally-unique identifier (the pool
// registry -- see pool.Manager -- assigns one for every pool created
// through it, including HTTP/CLI creations).
func NewPool(id, stakeTokenType string, unlockCountdownMs int64) (*Pool, AdminCap, error) {
	if unlockCountdownMs <= 0 {
		return nil, AdminCap{}, ErrZeroUnlockCountdown
	}
	p := &Pool{
		ID:                id,
		StakeTokenType:    stakeTokenType,
		UnlockCountdownMs: unlockCountdownMs,
		Active:            true,
		Programs:          make([]*IncentiveProgram, 0),
		UserShares:        make(map[string]*UserShareLedger),
	}
	return p, NewAdminCap(id), nil
}

// RehydrateFromStorage restores the unexported nextIncentiveID counter
// after loading a pool from persistence, so freshly created programs never
// collide with ids already on disk. nextIncentiveID must be the exact
// value NextIncentiveID reported at save time -- it is never safe to
// re-derive from len(Programs), since RemoveIncentiveProgram shrinks
// Programs without the counter shrinking. Callers (storage.Store) are
// responsible for also attaching UserShares and Programs before resuming
// operations.
func (p *Pool) RehydrateFromStorage(nextIncentiveID uint64) {
	p.nextIncentiveID = nextIncentiveID
}

// NextIncentiveID reports the counter's current value, for callers
// (storage.Store) that need to persist it verbatim alongside the rest of
// the pool's state.
func (p *Pool) NextIncentiveID() uint64 {
	return p.nextIncentiveID
}

func (p *Pool) requireCap(cap AdminCap) error {
	if !cap.authorizes(p.ID) {
		return NewError(CapabilityMismatch, "capability does not authorize this pool", map[string]interface{}{
			"pool_id": p.ID,
		})
	}
	return nil
}

func (p *Pool) nextProgramID() string {
	id := fmt.Sprintf("prog-%d", p.nextIncentiveID)
	p.nextIncentiveID++
	return id
}

// programByIdx validates a positional index against the registry.
func (p *Pool) programByIdx(idx int) (*IncentiveProgram, error) {
	if idx < 0 || idx >= len(p.Programs) {
		return nil, NewError(ProgramNotFound, "program index out of range", map[string]interface{}{"program_idx": idx})
	}
	return p.Programs[idx], nil
}

// allocateIncentive advances every active program's price index to the
// clock-aligned boundary at or before nowMs. Idempotent for a fixed nowMs:
// calling it twice in a row at the same timestamp is a no-op the second
// time, because aligned_now will no longer exceed LastAllocateMs.
func (p *Pool) allocateIncentive(nowMs int64) error {
	for _, prog := range p.Programs {
		if !prog.Active {
			continue
		}
		interval := prog.Config.IntervalMs
		alignedNow := (nowMs / interval) * interval
		if alignedNow <= prog.LastAllocateMs {
			continue
		}
		elapsed := uint64(alignedNow - prog.LastAllocateMs)
		periodAmount, err := periodAllocation(prog.Config.PeriodAmount, elapsed, uint64(interval))
		if err != nil {
			return err
		}
		if p.TotalActiveShares > 0 {
			delta, err := indexDelta(periodAmount, p.TotalActiveShares)
			if err != nil {
				return err
			}
			prog.PriceIndex += delta
		}
		// else: total_active_shares == 0, the period is silently skipped;
		// the would-be allocation stays in prog.Balance undistributed.
		prog.LastAllocateMs = alignedNow
	}
	return nil
}

// CreateIncentiveProgram registers a new program funded with initialBalance
// units of incentiveTokenType, distributing periodAmount per intervalMs.
func (p *Pool) CreateIncentiveProgram(cap AdminCap, incentiveTokenType string, initialBalance, periodAmount uint64, intervalMs int64, clk Clock) (*IncentiveProgram, error) {
	if err := p.requireCap(cap); err != nil {
		return nil, err
	}
	prog, err := newIncentiveProgram(p.nextProgramID(), incentiveTokenType, initialBalance, periodAmount, intervalMs, clk.NowMs())
	if err != nil {
		return nil, err
	}
	p.Programs = append(p.Programs, prog)
	return prog, nil
}

// DeactivateIncentiveProgram freezes a program's index in place.
func (p *Pool) DeactivateIncentiveProgram(cap AdminCap, programIdx int, tokenType string) error {
	if err := p.requireCap(cap); err != nil {
		return err
	}
	prog, err := p.programByIdx(programIdx)
	if err != nil {
		return err
	}
	return prog.deactivate(tokenType)
}

// ActivateIncentiveProgram is the inverse of DeactivateIncentiveProgram.
func (p *Pool) ActivateIncentiveProgram(cap AdminCap, programIdx int, tokenType string) error {
	if err := p.requireCap(cap); err != nil {
		return err
	}
	prog, err := p.programByIdx(programIdx)
	if err != nil {
		return err
	}
	return prog.activate(tokenType)
}

// RemoveIncentiveProgram destroys the program record and returns its
// remaining balance to the admin as a Coin of TokenType. Ledger entries
// still pointing at this program's id are left in place.
func (p *Pool) RemoveIncentiveProgram(cap AdminCap, programIdx int, tokenType string) (Coin, error) {
	if err := p.requireCap(cap); err != nil {
		return Coin{}, err
	}
	prog, err := p.programByIdx(programIdx)
	if err != nil {
		return Coin{}, err
	}
	if prog.TokenType != tokenType {
		return Coin{}, NewError(TokenTypeMismatch, "incentive token type does not match program", nil)
	}
	remaining := prog.Balance
	p.Programs = append(p.Programs[:programIdx], p.Programs[programIdx+1:]...)
	// Ledgers' LastIndexByProgram[prog.ID] entries become dangling; harvest
	// iterates the (now shorter) registry, never ledger keys, so they are
	// silently ignored from here on.
	return Coin{TokenType: tokenType, Amount: remaining}, nil
}

// UpdateIncentiveConfig changes a program's rate parameters. If
// forcePreAllocate is true, allocate_incentive is run first so the old
// rate still applies to time already elapsed; if false (the historical
// default), the new rate retroactively applies to the unallocated window
// since the program's last allocation -- see spec open question.
func (p *Pool) UpdateIncentiveConfig(cap AdminCap, programIdx int, newPeriodAmount *uint64, newIntervalMs *int64, forcePreAllocate bool, clk Clock) error {
	if err := p.requireCap(cap); err != nil {
		return err
	}
	if forcePreAllocate {
		if err := p.allocateIncentive(clk.NowMs()); err != nil {
			return err
		}
	}
	prog, err := p.programByIdx(programIdx)
	if err != nil {
		return err
	}
	return prog.updateConfig(newPeriodAmount, newIntervalMs)
}

// UpdateUnlockCountdownMs changes the pool's unlock countdown for future
// unsubscriptions. Existing deactivating tranches keep the UnlockedMs they
// were assigned at unsubscription time.
func (p *Pool) UpdateUnlockCountdownMs(cap AdminCap, newMs int64) error {
	if err := p.requireCap(cap); err != nil {
		return err
	}
	if newMs <= 0 {
		return ErrZeroUnlockCountdown
	}
	p.UnlockCountdownMs = newMs
	return nil
}
