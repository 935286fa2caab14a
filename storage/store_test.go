package storage

import (
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bockstake/stakepool/pool"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSavePoolAndLoadPoolRecord_RoundTrips(t *testing.T) {
	store := newTestStore(t)

	p, _, err := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, err)
	p.StakeBalance = 500
	p.TotalActiveShares = 500

	require.NoError(t, store.SavePool(p))

	rec, err := store.LoadPoolRecord("pool-0")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pool-0", rec.ID)
	assert.Equal(t, "S", rec.StakeTokenType)
	assert.Equal(t, uint64(500), rec.StakeBalance)
	assert.Equal(t, uint64(500), rec.TotalActiveShares)
}

func TestLoadPoolRecord_UnknownIDReturnsNilNoError(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.LoadPoolRecord("nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestListPoolIDs_ReturnsEverySavedPool(t *testing.T) {
	store := newTestStore(t)

	p0, _, _ := pool.NewPool("pool-0", "S", 60_000)
	p1, _, _ := pool.NewPool("pool-1", "S", 60_000)
	require.NoError(t, store.SavePool(p0))
	require.NoError(t, store.SavePool(p1))

	ids, err := store.ListPoolIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pool-0", "pool-1"}, ids)
}

func TestSaveAndLoadUserLedger_RoundTrips(t *testing.T) {
	store := newTestStore(t)

	p, _, _ := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, store.SavePool(p))

	clk := pool.NewMockClock(1_715_212_800_000)
	require.NoError(t, p.Stake(pool.Coin{TokenType: "S", Amount: 1000}, clk, "alice"))

	ledger := p.UserShares["alice"]
	require.NoError(t, store.SaveUserLedger("pool-0", ledger))

	loaded, err := store.LoadUserLedger("pool-0", "alice")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint64(1000), loaded.ActiveShares)
	assert.Equal(t, "alice", loaded.User)
}

func TestLoadUserLedger_UnknownUserReturnsNilNoError(t *testing.T) {
	store := newTestStore(t)
	p, _, _ := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, store.SavePool(p))

	loaded, err := store.LoadUserLedger("pool-0", "nobody")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestDeleteUserLedger_RemovesIt(t *testing.T) {
	store := newTestStore(t)
	p, _, _ := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, store.SavePool(p))

	clk := pool.NewMockClock(1_715_212_800_000)
	require.NoError(t, p.Stake(pool.Coin{TokenType: "S", Amount: 1000}, clk, "alice"))
	require.NoError(t, store.SaveUserLedger("pool-0", p.UserShares["alice"]))

	require.NoError(t, store.DeleteUserLedger("pool-0", "alice"))

	loaded, err := store.LoadUserLedger("pool-0", "alice")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadAllUserLedgers_ReturnsEveryUser(t *testing.T) {
	store := newTestStore(t)
	p, _, _ := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, store.SavePool(p))

	clk := pool.NewMockClock(1_715_212_800_000)
	require.NoError(t, p.Stake(pool.Coin{TokenType: "S", Amount: 1000}, clk, "alice"))
	require.NoError(t, p.Stake(pool.Coin{TokenType: "S", Amount: 2000}, clk, "bob"))
	require.NoError(t, store.SaveUserLedger("pool-0", p.UserShares["alice"]))
	require.NoError(t, store.SaveUserLedger("pool-0", p.UserShares["bob"]))

	ledgers, err := store.LoadAllUserLedgers("pool-0")
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, uint64(1000), ledgers["alice"].ActiveShares)
	assert.Equal(t, uint64(2000), ledgers["bob"].ActiveShares)
}

func TestHydrate_RebuildsPoolsAndLedgersIntoManager(t *testing.T) {
	store := newTestStore(t)

	clk := pool.NewMockClock(1_715_212_800_000)
	p, cap, err := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, err)
	_, err = p.CreateIncentiveProgram(cap, "I", 100_000_000_000, 10_000_000, 60_000, clk)
	require.NoError(t, err)
	require.NoError(t, p.Stake(pool.Coin{TokenType: "S", Amount: 1_000_000_000}, clk, "alice"))
	require.NoError(t, store.SavePool(p))
	require.NoError(t, store.SaveUserLedger("pool-0", p.UserShares["alice"]))

	m := pool.NewManager(log.NewNopLogger(), clk, nil, nil)
	require.NoError(t, store.Hydrate(m))

	loaded, err := m.GetPool("pool-0")
	require.NoError(t, err)
	assert.Equal(t, "S", loaded.StakeTokenType)
	assert.Equal(t, uint64(1_000_000_000), loaded.TotalActiveShares)
	require.Len(t, loaded.Programs, 1)

	ledger, err := m.GetUserLedger("pool-0", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), ledger.ActiveShares)

	// A pool created after hydration must not collide with the rehydrated id.
	newP, _, err := m.NewPool("S", 60_000)
	require.NoError(t, err)
	assert.Equal(t, "pool-1", newP.ID)
}

// Removing a program shrinks Programs without shrinking nextIncentiveID;
// a restart must restore the counter verbatim rather than re-deriving it
// from the surviving program count, or a freshly created program's id
// collides with one still on disk.
func TestHydrate_NextIncentiveIDSurvivesProgramRemoval(t *testing.T) {
	store := newTestStore(t)

	clk := pool.NewMockClock(1_715_212_800_000)
	p, cap, err := pool.NewPool("pool-0", "S", 60_000)
	require.NoError(t, err)
	_, err = p.CreateIncentiveProgram(cap, "I", 100, 10, 60_000, clk) // prog-0
	require.NoError(t, err)
	_, err = p.CreateIncentiveProgram(cap, "I", 100, 10, 60_000, clk) // prog-1
	require.NoError(t, err)
	_, err = p.CreateIncentiveProgram(cap, "I", 100, 10, 60_000, clk) // prog-2
	require.NoError(t, err)
	_, err = p.RemoveIncentiveProgram(cap, 1, "I") // removes prog-1, leaves [prog-0, prog-2]
	require.NoError(t, err)
	require.NoError(t, store.SavePool(p))

	m := pool.NewManager(log.NewNopLogger(), clk, nil, nil)
	require.NoError(t, store.Hydrate(m))

	loaded, err := m.GetPool("pool-0")
	require.NoError(t, err)
	require.Len(t, loaded.Programs, 2)

	newProg, err := m.CreateIncentiveProgram(cap, "pool-0", "I", 100, 10, 60_000)
	require.NoError(t, err)
	assert.Equal(t, "prog-3", newProg.ID)
}
