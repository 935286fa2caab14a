package pool

import "math/big"

// priceIndexBase is the fixed-point multiplier applied to price indexes:
// one unit of price_index represents 1/priceIndexBase of an incentive
// token per share.
const priceIndexBase uint64 = 1_000_000_000

// mulDivFloor computes floor(x*y/d) using a 128-bit intermediate so that
// x*y never truncates before the division, then narrows the result back to
// uint64. d must be non-zero; callers are responsible for skipping the
// division-by-zero case themselves (total_active_shares == 0 is not an
// error, it is a "this period's allocation is silently skipped" case
// handled by the caller before reaching here).
func mulDivFloor(x, y, d uint64) (uint64, error) {
	num := new(big.Int).Mul(new(big.Int).SetUint64(x), new(big.Int).SetUint64(y))
	num.Quo(num, new(big.Int).SetUint64(d))
	if !num.IsUint64() {
		return 0, NewError(ArithmeticOverflow, "128-bit intermediate does not narrow to uint64", map[string]interface{}{
			"x": x, "y": y, "d": d,
		})
	}
	return num.Uint64(), nil
}

// indexDelta computes the price-index increment for a period distributing
// periodAmount incentive-token units across totalActiveShares shares.
func indexDelta(periodAmount, totalActiveShares uint64) (uint64, error) {
	return mulDivFloor(priceIndexBase, periodAmount, totalActiveShares)
}

// owedFromIndex computes the incentive-token amount owed to a holder of
// shares given a (possibly zero) price-index delta.
func owedFromIndex(shares, deltaIndex uint64) (uint64, error) {
	if shares == 0 || deltaIndex == 0 {
		return 0, nil
	}
	return mulDivFloor(shares, deltaIndex, priceIndexBase)
}

// periodAllocation computes how much of a program's periodAmount accrues
// over elapsedMs out of a full intervalMs period.
func periodAllocation(periodAmount, elapsedMs, intervalMs uint64) (uint64, error) {
	return mulDivFloor(periodAmount, elapsedMs, intervalMs)
}
