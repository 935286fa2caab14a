package pool

// Harvest pays out every program denominated in incentiveTokenType that
// the caller has accrued, across both active shares and deactivating
// tranches, clamped to each program's available balance (drain-safe: a
// harvest never pays out more than a program actually holds). Calling
// Harvest twice at the same clock value yields zero the second time,
// because LastIndexByProgram is advanced to the program's current index
// on every call regardless of how much (if anything) was actually paid.
func (p *Pool) Harvest(incentiveTokenType string, clk Clock, user string) (Coin, error) {
	now := clk.NowMs()
	if err := p.allocateIncentive(now); err != nil {
		return Coin{}, err
	}

	ledger, exists := p.UserShares[user]
	if !exists {
		return Coin{}, NewError(UserShareNotFound, "no share ledger for user", map[string]interface{}{"user": user})
	}

	var owed uint64
	for _, prog := range p.Programs {
		if prog.TokenType != incentiveTokenType {
			continue
		}
		last, seen := ledger.LastIndexByProgram[prog.ID]
		if !seen {
			last = 0
		}

		activeOwed, err := owedFromIndex(ledger.ActiveShares, prog.PriceIndex-last)
		if err != nil {
			return Coin{}, err
		}

		var trancheOwed uint64
		for _, tr := range ledger.Deactivating {
			ceiling, ok := tr.SnapshotIndexByProgramID[prog.ID]
			if !ok || ceiling <= last {
				continue
			}
			amt, err := owedFromIndex(tr.Shares, ceiling-last)
			if err != nil {
				return Coin{}, err
			}
			trancheOwed += amt
		}

		programOwed := activeOwed + trancheOwed
		ledger.LastIndexByProgram[prog.ID] = prog.PriceIndex

		if programOwed > prog.Balance {
			programOwed = prog.Balance
		}
		prog.Balance -= programOwed
		owed += programOwed
	}

	return Coin{TokenType: incentiveTokenType, Amount: owed}, nil
}
