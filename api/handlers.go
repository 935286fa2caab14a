package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bockstake/stakepool/pool"
)

// statusFor maps the engine's stable error codes onto HTTP status codes.
// Anything unrecognized (including non-*pool.Error values) is a 500.
func statusFor(err error) int {
	perr, ok := err.(*pool.Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch perr.Code {
	case pool.PoolNotFound, pool.ProgramNotFound, pool.UserShareNotFound:
		return http.StatusNotFound
	case pool.CapabilityMismatch:
		return http.StatusForbidden
	case pool.TokenTypeMismatch, pool.ActiveSharesNotEnough, pool.SharesNotYetExpired,
		pool.ZeroUnlockCountdown, pool.AlreadyDeactivated, pool.AlreadyActivated,
		pool.ZeroIncentive, pool.ZeroPeriodIncentiveAmount, pool.ZeroCoin, pool.UserMismatch,
		pool.InvalidIntervalMs:
		return http.StatusBadRequest
	case pool.ArithmeticOverflow:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c echo.Context, err error) error {
	return c.JSON(statusFor(err), APIError{Error: err.Error()})
}

type capabilityPayload struct {
	ID     string `json:"id"`
	PoolID string `json:"pool_id"`
}

func (p capabilityPayload) toCap() pool.AdminCap {
	return pool.AdminCap{ID: p.ID, PoolID: p.PoolID}
}

// --- admin: pool lifecycle ---

type newPoolRequest struct {
	StakeTokenType    string `json:"stake_token_type"`
	UnlockCountdownMs int64  `json:"unlock_countdown_ms"`
}

type newPoolResponse struct {
	PoolID     string            `json:"pool_id"`
	Capability capabilityPayload `json:"capability"`
}

func (s *Server) handleNewPool(c echo.Context) error {
	var req newPoolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}

	p, cap, err := s.manager.NewPool(req.StakeTokenType, req.UnlockCountdownMs)
	if err != nil {
		return respondErr(c, err)
	}

	return c.JSON(http.StatusOK, newPoolResponse{
		PoolID:     p.ID,
		Capability: capabilityPayload{ID: cap.ID, PoolID: cap.PoolID},
	})
}

type poolResponse struct {
	ID                string `json:"id"`
	StakeTokenType    string `json:"stake_token_type"`
	UnlockCountdownMs int64  `json:"unlock_countdown_ms"`
	TotalActiveShares uint64 `json:"total_active_shares"`
	StakeBalance      uint64 `json:"stake_balance"`
	ProgramCount      int    `json:"program_count"`
}

func (s *Server) handleGetPool(c echo.Context) error {
	p, err := s.manager.GetPool(c.Param("poolId"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, poolResponse{
		ID:                p.ID,
		StakeTokenType:    p.StakeTokenType,
		UnlockCountdownMs: p.UnlockCountdownMs,
		TotalActiveShares: p.TotalActiveShares,
		StakeBalance:      p.StakeBalance,
		ProgramCount:      len(p.Programs),
	})
}

// --- admin: incentive programs ---

type createIncentiveProgramRequest struct {
	Capability         capabilityPayload `json:"capability"`
	IncentiveTokenType string            `json:"incentive_token_type"`
	InitialBalance     uint64            `json:"initial_balance"`
	PeriodAmount       uint64            `json:"period_amount"`
	IntervalMs         int64             `json:"interval_ms"`
}

func (s *Server) handleCreateIncentiveProgram(c echo.Context) error {
	var req createIncentiveProgramRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	prog, err := s.manager.CreateIncentiveProgram(req.Capability.toCap(), c.Param("poolId"),
		req.IncentiveTokenType, req.InitialBalance, req.PeriodAmount, req.IntervalMs)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, prog)
}

type programIdxRequest struct {
	Capability capabilityPayload `json:"capability"`
	TokenType  string            `json:"token_type"`
}

func parseProgramIdx(c echo.Context) (int, error) {
	return strconv.Atoi(c.Param("idx"))
}

func (s *Server) handleDeactivateIncentiveProgram(c echo.Context) error {
	idx, err := parseProgramIdx(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid program index"})
	}
	var req programIdxRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	if err := s.manager.DeactivateIncentiveProgram(req.Capability.toCap(), c.Param("poolId"), idx, req.TokenType); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleActivateIncentiveProgram(c echo.Context) error {
	idx, err := parseProgramIdx(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid program index"})
	}
	var req programIdxRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	if err := s.manager.ActivateIncentiveProgram(req.Capability.toCap(), c.Param("poolId"), idx, req.TokenType); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleRemoveIncentiveProgram(c echo.Context) error {
	idx, err := parseProgramIdx(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid program index"})
	}
	var req programIdxRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	coin, err := s.manager.RemoveIncentiveProgram(req.Capability.toCap(), c.Param("poolId"), idx, req.TokenType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, coin)
}

type updateIncentiveConfigRequest struct {
	Capability       capabilityPayload `json:"capability"`
	NewPeriodAmount  *uint64           `json:"new_period_amount"`
	NewIntervalMs    *int64            `json:"new_interval_ms"`
	ForcePreAllocate bool              `json:"force_pre_allocate"`
}

func (s *Server) handleUpdateIncentiveConfig(c echo.Context) error {
	idx, err := parseProgramIdx(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid program index"})
	}
	var req updateIncentiveConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	err = s.manager.UpdateIncentiveConfig(req.Capability.toCap(), c.Param("poolId"), idx,
		req.NewPeriodAmount, req.NewIntervalMs, req.ForcePreAllocate)
	if err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

type updateUnlockCountdownRequest struct {
	Capability capabilityPayload `json:"capability"`
	NewMs      int64             `json:"new_unlock_countdown_ms"`
}

func (s *Server) handleUpdateUnlockCountdown(c echo.Context) error {
	var req updateUnlockCountdownRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	if err := s.manager.UpdateUnlockCountdownMs(req.Capability.toCap(), c.Param("poolId"), req.NewMs); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// --- user operations ---

type stakeRequest struct {
	User   string `json:"user"`
	Amount uint64 `json:"amount"`
}

func (s *Server) handleStake(c echo.Context) error {
	var req stakeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	p, err := s.manager.GetPool(c.Param("poolId"))
	if err != nil {
		return respondErr(c, err)
	}
	if err := s.manager.Stake(p.ID, pool.Coin{TokenType: p.StakeTokenType, Amount: req.Amount}, req.User); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

type sharesRequest struct {
	User   string  `json:"user"`
	Shares *uint64 `json:"shares"`
}

func (s *Server) handleUnsubscribe(c echo.Context) error {
	var req sharesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	if err := s.manager.Unsubscribe(c.Param("poolId"), req.Shares, req.User); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleUnstake(c echo.Context) error {
	var req sharesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	coin, err := s.manager.Unstake(c.Param("poolId"), req.Shares, req.User)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, coin)
}

type harvestRequest struct {
	User               string `json:"user"`
	IncentiveTokenType string `json:"incentive_token_type"`
}

func (s *Server) handleHarvest(c echo.Context) error {
	var req harvestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Error: "invalid request body"})
	}
	coin, err := s.manager.Harvest(c.Param("poolId"), req.IncentiveTokenType, req.User)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, coin)
}

// --- read-only ---

func (s *Server) handleGetUserLedger(c echo.Context) error {
	ledger, err := s.manager.GetUserLedger(c.Param("poolId"), c.Param("user"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, ledger)
}

func (s *Server) handlePendingHarvest(c echo.Context) error {
	coin, err := s.manager.PendingHarvest(c.Param("poolId"), c.Param("tokenType"), c.Param("user"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, coin)
}
