package pool

// Stake deposits stakeCoin's principal into the pool and credits the
// caller with an equal number of active shares.
//
// Known quirk, preserved intentionally (see spec open questions): this
// overwrites the user's LastIndexByProgram with the *current* snapshot of
// every program's index, which silently discards any unharvested yield on
// the user's pre-existing active shares. Callers must Harvest before
// re-staking if they do not want to lose accrued-but-unharvested rewards.
func (p *Pool) Stake(stakeCoin Coin, clk Clock, user string) error {
	if stakeCoin.TokenType != p.StakeTokenType {
		return NewError(TokenTypeMismatch, "stake coin type does not match pool", nil)
	}
	if stakeCoin.Amount == 0 {
		return ErrZeroCoin
	}
	now := clk.NowMs()
	if err := p.allocateIncentive(now); err != nil {
		return err
	}

	p.StakeBalance += stakeCoin.Amount

	ledger, exists := p.UserShares[user]
	if !exists {
		ledger = newUserShareLedger(user)
		p.UserShares[user] = ledger
	}
	ledger.LastStakeMs = now
	ledger.ActiveShares += stakeCoin.Amount
	ledger.LastIndexByProgram = snapshotIndexes(p.Programs)

	p.TotalActiveShares += stakeCoin.Amount
	return nil
}

// Unsubscribe moves sharesOpt (or, if nil, all of the caller's active
// shares) out of the active set and into a new deactivating tranche that
// becomes withdrawable after the pool's unlock countdown. The tranche
// freezes each program's current index as its earning ceiling.
func (p *Pool) Unsubscribe(sharesOpt *uint64, clk Clock, user string) error {
	now := clk.NowMs()
	if err := p.allocateIncentive(now); err != nil {
		return err
	}

	ledger, exists := p.UserShares[user]
	if !exists {
		return NewError(UserShareNotFound, "no share ledger for user", map[string]interface{}{"user": user})
	}

	shares := ledger.ActiveShares
	if sharesOpt != nil {
		shares = *sharesOpt
	}
	if ledger.ActiveShares < shares {
		return NewError(ActiveSharesNotEnough, "not enough active shares to unsubscribe", map[string]interface{}{
			"requested": shares, "available": ledger.ActiveShares,
		})
	}

	ledger.ActiveShares -= shares
	ledger.Deactivating = append(ledger.Deactivating, &DeactivatingTranche{
		Shares:                   shares,
		UnsubscribedMs:           now,
		UnlockedMs:               now + p.UnlockCountdownMs,
		SnapshotIndexByProgramID: snapshotIndexes(p.Programs),
	})

	p.TotalActiveShares -= shares
	return nil
}

// Unstake withdraws sharesOpt (or, if nil, every currently-deactivating
// share) of principal back to the caller, walking tranches FIFO and
// rejecting the call outright if the walk reaches a tranche that has not
// yet cleared its unlock countdown. target == 0 is a valid no-op that
// returns a zero-value Coin.
func (p *Pool) Unstake(sharesOpt *uint64, clk Clock, user string) (Coin, error) {
	now := clk.NowMs()
	if err := p.allocateIncentive(now); err != nil {
		return Coin{}, err
	}

	ledger, exists := p.UserShares[user]
	if !exists {
		return Coin{}, NewError(UserShareNotFound, "no share ledger for user", map[string]interface{}{"user": user})
	}

	target := ledger.TotalDeactivatingShares()
	if sharesOpt != nil {
		target = *sharesOpt
	}
	if target == 0 {
		return Coin{TokenType: p.StakeTokenType, Amount: 0}, nil
	}

	// Validate the whole FIFO walk before mutating anything: if a tranche
	// needed to satisfy target has not cleared its unlock countdown, abort
	// here with zero state change. Mutating Deactivating/StakeBalance as
	// we walk and only then discovering a locked tranche would strand
	// already-consumed principal with no Coin returned for it.
	remaining := target
	for i := 0; i < len(ledger.Deactivating) && remaining > 0; i++ {
		tr := ledger.Deactivating[i]
		if tr.UnlockedMs > now {
			return Coin{}, NewError(SharesNotYetExpired, "tranche has not cleared the unlock countdown", map[string]interface{}{
				"unlocked_ms": tr.UnlockedMs, "now_ms": now,
			})
		}
		if tr.Shares >= remaining {
			remaining = 0
		} else {
			remaining -= tr.Shares
		}
	}

	var consumed uint64
	remaining = target
	i := 0
	for remaining > 0 && i < len(ledger.Deactivating) {
		tr := ledger.Deactivating[i]
		if tr.Shares <= remaining {
			consumed += tr.Shares
			remaining -= tr.Shares
			ledger.Deactivating = append(ledger.Deactivating[:i], ledger.Deactivating[i+1:]...)
			continue // do not advance i: the slice shifted left
		}
		tr.Shares -= remaining
		consumed += remaining
		remaining = 0
	}

	// total_shares tracking is implicit: TotalShares() derives from
	// ActiveShares + sum(tranche.shares), both already updated above.
	if ledger.isEmpty() {
		delete(p.UserShares, user)
	}

	p.StakeBalance -= consumed
	return Coin{TokenType: p.StakeTokenType, Amount: consumed}, nil
}
