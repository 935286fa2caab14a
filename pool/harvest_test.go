package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvest_RequiresExistingLedger(t *testing.T) {
	p, _, clk := newTestPool(t, fiveDaysMs)
	_, err := p.Harvest("I", clk, "alice")
	require.Error(t, err)
	assert.Equal(t, UserShareNotFound, err.(*Error).Code)
}

// Boundary scenario 1: solo stake + harvest one interval.
func TestHarvest_SoloStakeOneFullInterval(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "I", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))

	clk.Advance(60_000)
	coin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, Coin{TokenType: "I", Amount: 10_000_000}, coin)

	// L2: repeat harvest at the same timestamp yields zero.
	coin, err = p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), coin.Amount)
}

// Boundary scenario 2: two users share proportionally.
func TestHarvest_TwoUsersProportionalSplit(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "I", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 10_000_000}, clk, "bob"))

	clk.Advance(60_000)
	aliceCoin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	bobCoin, err := p.Harvest("I", clk, "bob")
	require.NoError(t, err)

	assert.Equal(t, uint64(9_900_990), aliceCoin.Amount)
	assert.Equal(t, uint64(99_009), bobCoin.Amount)
	assert.LessOrEqual(t, aliceCoin.Amount+bobCoin.Amount, uint64(10_000_000))
}

// Boundary scenario 3: unsubscribe freezes yield at the snapshot cap.
func TestHarvest_UnsubscribeFreezesYield(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "I", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))

	clk.Advance(60_000)
	require.NoError(t, p.Unsubscribe(nil, clk, "alice"))

	clk.Advance(9 * 60_000) // now at T0 + 10*interval
	coin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, Coin{TokenType: "I", Amount: 10_000_000}, coin) // exactly one period, frozen
}

// Boundary scenario 6: harvesting after the earning program is removed is a
// silent no-op for that program's now-absent id.
func TestHarvest_SilentNoOpAfterProgramRemoved(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "I", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))

	clk.Advance(60_000)
	_, err = p.Harvest("I", clk, "alice")
	require.NoError(t, err)

	_, err = p.RemoveIncentiveProgram(cap, 0, "I")
	require.NoError(t, err)

	clk.Advance(60_000)
	coin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), coin.Amount)
}

func TestHarvest_ClampsToAvailableProgramBalance(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "I", 1_000, 10_000_000, 60_000, clk) // tiny balance
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))

	clk.Advance(60_000)
	coin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), coin.Amount) // drain-safe clamp, not 10_000_000
	assert.Equal(t, uint64(0), p.Programs[0].Balance)
}

func TestHarvest_IgnoresOtherTokenTypePrograms(t *testing.T) {
	p, cap, clk := newTestPool(t, fiveDaysMs)
	_, err := p.CreateIncentiveProgram(cap, "J", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))

	clk.Advance(60_000)
	coin, err := p.Harvest("I", clk, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), coin.Amount)
}
