package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioT0 int64 = 1_715_212_800_000

func TestNewIncentiveProgram_RejectsZeroBalance(t *testing.T) {
	_, err := newIncentiveProgram("prog-0", "I", 0, 10_000_000, 60_000, scenarioT0)
	require.Error(t, err)
	assert.Equal(t, ZeroIncentive, err.(*Error).Code)
}

func TestNewIncentiveProgram_RejectsZeroPeriod(t *testing.T) {
	_, err := newIncentiveProgram("prog-0", "I", 100, 0, 60_000, scenarioT0)
	require.Error(t, err)
	assert.Equal(t, ZeroPeriodIncentiveAmount, err.(*Error).Code)
}

func TestNewIncentiveProgram_UnroundedLastAllocateMs(t *testing.T) {
	prog, err := newIncentiveProgram("prog-0", "I", 100, 10, 60_000, scenarioT0+12_345)
	require.NoError(t, err)
	assert.Equal(t, scenarioT0+12_345, prog.LastAllocateMs)
	assert.Equal(t, uint64(0), prog.PriceIndex)
	assert.True(t, prog.Active)
}

func TestIncentiveProgram_DeactivateActivate(t *testing.T) {
	prog, err := newIncentiveProgram("prog-0", "I", 100, 10, 60_000, scenarioT0)
	require.NoError(t, err)

	require.Error(t, prog.deactivate("WRONG"))
	require.NoError(t, prog.deactivate("I"))
	assert.False(t, prog.Active)

	err = prog.deactivate("I")
	require.Error(t, err)
	assert.Equal(t, AlreadyDeactivated, err.(*Error).Code)

	require.NoError(t, prog.activate("I"))
	assert.True(t, prog.Active)

	err = prog.activate("I")
	require.Error(t, err)
	assert.Equal(t, AlreadyActivated, err.(*Error).Code)
}

func TestIncentiveProgram_UpdateConfig_NilFieldsUnchanged(t *testing.T) {
	prog, err := newIncentiveProgram("prog-0", "I", 100, 10, 60_000, scenarioT0)
	require.NoError(t, err)

	require.NoError(t, prog.updateConfig(nil, nil))
	assert.Equal(t, uint64(10), prog.Config.PeriodAmount)
	assert.Equal(t, int64(60_000), prog.Config.IntervalMs)

	newPeriod := uint64(20)
	require.NoError(t, prog.updateConfig(&newPeriod, nil))
	assert.Equal(t, uint64(20), prog.Config.PeriodAmount)
	assert.Equal(t, int64(60_000), prog.Config.IntervalMs)

	zero := uint64(0)
	err = prog.updateConfig(&zero, nil)
	require.Error(t, err)
	assert.Equal(t, ZeroPeriodIncentiveAmount, err.(*Error).Code)
}
