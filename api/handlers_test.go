package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/log"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bockstake/stakepool/pool"
)

const fiveDaysMs = 5 * 24 * 3_600_000

func setupTestServer() *Server {
	clk := pool.NewMockClock(1_715_212_800_000)
	manager := pool.NewManager(log.NewNopLogger(), clk, nil, nil)
	return NewServer(ServerConfig{ListenAddr: ":0"}, manager)
}

func doRequest(e *echo.Echo, method, target string, body interface{}, handler echo.HandlerFunc, paramNames []string, paramValues []string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	_ = handler(c)
	return rec
}

func TestHandleNewPool_CreatesPoolAndReturnsCapability(t *testing.T) {
	s := setupTestServer()
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/pool", newPoolRequest{StakeTokenType: "S", UnlockCountdownMs: fiveDaysMs},
		s.handleNewPool, nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp newPoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pool-0", resp.PoolID)
	assert.Equal(t, resp.PoolID, resp.Capability.PoolID)
	assert.NotEmpty(t, resp.Capability.ID)
}

func TestHandleNewPool_RejectsBelowEngineMinimum(t *testing.T) {
	s := setupTestServer()
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/pool", newPoolRequest{StakeTokenType: "S", UnlockCountdownMs: 1},
		s.handleNewPool, nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPool_NotFound(t *testing.T) {
	s := setupTestServer()
	e := echo.New()

	rec := doRequest(e, http.MethodGet, "/pool/nope", nil, s.handleGetPool, []string{"poolId"}, []string{"nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.NotEmpty(t, apiErr.Error)
}

func TestHandleStakeAndHarvest_EndToEnd(t *testing.T) {
	s := setupTestServer()
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/pool", newPoolRequest{StakeTokenType: "S", UnlockCountdownMs: fiveDaysMs},
		s.handleNewPool, nil, nil)
	var newPool newPoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &newPool))

	rec = doRequest(e, http.MethodPost, "/pool/"+newPool.PoolID+"/program",
		createIncentiveProgramRequest{
			Capability:         newPool.Capability,
			IncentiveTokenType: "I",
			InitialBalance:     100_000_000_000,
			PeriodAmount:       10_000_000,
			IntervalMs:         60_000,
		}, s.handleCreateIncentiveProgram, []string{"poolId"}, []string{newPool.PoolID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, "/pool/"+newPool.PoolID+"/stake",
		stakeRequest{User: "alice", Amount: 1_000_000_000},
		s.handleStake, []string{"poolId"}, []string{newPool.PoolID})
	require.Equal(t, http.StatusOK, rec.Code)

	clk := s.manager.Clock().(*pool.MockClock)
	clk.Advance(60_000)

	rec = doRequest(e, http.MethodPost, "/pool/"+newPool.PoolID+"/harvest",
		harvestRequest{User: "alice", IncentiveTokenType: "I"},
		s.handleHarvest, []string{"poolId"}, []string{newPool.PoolID})
	require.Equal(t, http.StatusOK, rec.Code)

	var coin pool.Coin
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &coin))
	assert.Equal(t, uint64(10_000_000), coin.Amount)
}
