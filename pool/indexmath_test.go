package pool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDivFloor_Basic(t *testing.T) {
	got, err := mulDivFloor(10, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got) // floor(30/4) = 7
}

func TestMulDivFloor_OverflowsOnNarrow(t *testing.T) {
	_, err := mulDivFloor(math.MaxUint64, math.MaxUint64, 1)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ArithmeticOverflow, perr.Code)
}

func TestIndexDelta_ScenarioOneNumbers(t *testing.T) {
	// Boundary scenario 1: period_amount = 10^7, total_active_shares = 10^9.
	delta, err := indexDelta(10_000_000, 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), delta) // 10^9 * 10^7 / 10^9 = 10^7
}

func TestOwedFromIndex_ZeroShortCircuits(t *testing.T) {
	owed, err := owedFromIndex(0, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), owed)

	owed, err = owedFromIndex(500, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), owed)
}

func TestOwedFromIndex_RoundTripsScenarioOne(t *testing.T) {
	delta, err := indexDelta(10_000_000, 1_000_000_000)
	require.NoError(t, err)
	owed, err := owedFromIndex(1_000_000_000, delta)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), owed)
}

func TestPeriodAllocation_PartialInterval(t *testing.T) {
	// Half an interval elapsed accrues half the period amount.
	amt, err := periodAllocation(10_000_000, 30_000, 60_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), amt)
}
