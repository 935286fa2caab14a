package pool

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Emitter receives every event the engine produces. Implementations live
// outside the core (api.EventBus broadcasts over websocket, auditlog.Recorder
// persists to a relational table) -- the core only defines what occurs.
type Emitter interface {
	Emit(Event)
}

// Manager is the Go-native multi-pool registry: spec.md's single Pool
// generalized to "one per (stake-token type, configuration)" at registry
// scope, the same way the teacher's DAO struct aggregates many concern-
// specific managers behind one constructor-injected logger.
type Manager struct {
	logger log.Logger
	audit  *AuditLogger
	clock  Clock
	config *EngineConfig

	mu        sync.Mutex
	pools     map[string]*Pool
	emitters  []Emitter
	nextPoolN uint64
}

// NewManager constructs a Manager. logger and clk are required; audit and
// config may be nil/zero (audit becomes a no-op, config falls back to
// NewDefaultEngineConfig()).
func NewManager(logger log.Logger, clk Clock, audit *AuditLogger, config *EngineConfig) *Manager {
	if config == nil {
		config = NewDefaultEngineConfig()
	}
	return &Manager{
		logger: logger,
		audit:  audit,
		clock:  clk,
		config: config,
		pools:  make(map[string]*Pool),
	}
}

// AddEmitter registers an Event sink. It holds the manager's lock, so
// concurrent AddEmitter calls are safe; event delivery reads the sink list
// without that lock, so AddEmitter is not synchronized with pool
// operations that are emitting events at the same time.
func (m *Manager) AddEmitter(e Emitter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitters = append(m.emitters, e)
}

func (m *Manager) emit(ev Event) {
	for _, e := range m.emitters {
		e.Emit(ev)
	}
}

func (m *Manager) logInfo(msg string, kv ...interface{}) {
	_ = level.Info(m.logger).Log(append([]interface{}{"msg", msg}, kv...)...)
}

func (m *Manager) logError(msg string, err error, kv ...interface{}) {
	_ = level.Error(m.logger).Log(append([]interface{}{"msg", msg, "err", err}, kv...)...)
}

// NewPool creates and registers a new pool, minting its first AdminCap.
func (m *Manager) NewPool(stakeTokenType string, unlockCountdownMs int64) (*Pool, AdminCap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if unlockCountdownMs < m.config.MinUnlockCountdownMs {
		return nil, AdminCap{}, NewError(ZeroUnlockCountdown, "unlock countdown below engine minimum", map[string]interface{}{
			"minimum_ms": m.config.MinUnlockCountdownMs,
		})
	}

	id := fmt.Sprintf("pool-%d", m.nextPoolN)
	m.nextPoolN++

	p, cap, err := NewPool(id, stakeTokenType, unlockCountdownMs)
	if err != nil {
		m.logError("new pool rejected", err, "stake_token_type", stakeTokenType)
		return nil, AdminCap{}, err
	}
	m.pools[id] = p
	m.logInfo("pool created", "pool_id", id, "stake_token_type", stakeTokenType)
	m.emit(NewPoolEvent{PoolID: id, StakeTokenType: stakeTokenType, UnlockCountdownMs: unlockCountdownMs})
	return p, cap, nil
}

// AttachPool registers an already-constructed pool -- typically one
// rehydrated from storage.Store at process startup -- into the registry,
// without minting a capability or emitting a creation event. The pool's
// own id is trusted as-is; nextPoolN is advanced past it so freshly
// created pools never collide with ones loaded from disk.
func (m *Manager) AttachPool(p *Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[p.ID] = p
	if seq, ok := parsePoolSeq(p.ID); ok && seq+1 > m.nextPoolN {
		m.nextPoolN = seq + 1
	}
}

func parsePoolSeq(id string) (uint64, bool) {
	rest := strings.TrimPrefix(id, "pool-")
	if rest == id {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetPool looks up a pool by id.
func (m *Manager) GetPool(poolID string) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil, NewError(PoolNotFound, "pool not found", map[string]interface{}{"pool_id": poolID})
	}
	return p, nil
}

// Clock returns the manager's injected clock, for callers that need to
// timestamp things outside a pool operation (e.g. an HTTP handler logging
// request latency).
func (m *Manager) Clock() Clock { return m.clock }

// CreateIncentiveProgram is the registry-aware wrapper around
// Pool.CreateIncentiveProgram: looks up the pool, checks the capability,
// audits the attempt, applies the operation, and emits the event.
func (m *Manager) CreateIncentiveProgram(cap AdminCap, poolID, incentiveTokenType string, initialBalance, periodAmount uint64, intervalMs int64) (*IncentiveProgram, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if len(p.Programs) >= m.config.MaxProgramsPerPool && m.config.MaxProgramsPerPool > 0 {
		err := NewError(ProgramNotFound, "pool has reached its maximum program count", map[string]interface{}{"max": m.config.MaxProgramsPerPool})
		m.audit.Record(cap.ID, "CreateIncentiveProgram", poolID, -1, err)
		return nil, err
	}
	prog, err := p.CreateIncentiveProgram(cap, incentiveTokenType, initialBalance, periodAmount, intervalMs, m.clock)
	m.audit.Record(cap.ID, "CreateIncentiveProgram", poolID, -1, err)
	if err != nil {
		return nil, err
	}
	m.emit(CreateIncentiveProgramEvent{PoolID: poolID, ProgramID: prog.ID, TokenType: incentiveTokenType, PeriodAmount: periodAmount, IntervalMs: intervalMs})
	return prog, nil
}

// DeactivateIncentiveProgram is the registry-aware wrapper, see
// Pool.DeactivateIncentiveProgram.
func (m *Manager) DeactivateIncentiveProgram(cap AdminCap, poolID string, programIdx int, tokenType string) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	err = p.DeactivateIncentiveProgram(cap, programIdx, tokenType)
	m.audit.Record(cap.ID, "DeactivateIncentiveProgram", poolID, programIdx, err)
	if err != nil {
		return err
	}
	m.emit(DeactivateIncentiveProgramEvent{PoolID: poolID, ProgramID: p.Programs[programIdx].ID})
	return nil
}

// ActivateIncentiveProgram is the registry-aware wrapper, see
// Pool.ActivateIncentiveProgram.
func (m *Manager) ActivateIncentiveProgram(cap AdminCap, poolID string, programIdx int, tokenType string) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	err = p.ActivateIncentiveProgram(cap, programIdx, tokenType)
	m.audit.Record(cap.ID, "ActivateIncentiveProgram", poolID, programIdx, err)
	if err != nil {
		return err
	}
	m.emit(ActivateIncentiveProgramEvent{PoolID: poolID, ProgramID: p.Programs[programIdx].ID})
	return nil
}

// RemoveIncentiveProgram is the registry-aware wrapper, see
// Pool.RemoveIncentiveProgram.
func (m *Manager) RemoveIncentiveProgram(cap AdminCap, poolID string, programIdx int, tokenType string) (Coin, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return Coin{}, err
	}
	var removedID string
	if programIdx >= 0 && programIdx < len(p.Programs) {
		removedID = p.Programs[programIdx].ID
	}
	coin, err := p.RemoveIncentiveProgram(cap, programIdx, tokenType)
	m.audit.Record(cap.ID, "RemoveIncentiveProgram", poolID, programIdx, err)
	if err != nil {
		return Coin{}, err
	}
	m.emit(RemoveIncentiveProgramEvent{PoolID: poolID, ProgramID: removedID, ReturnedBalance: coin})
	return coin, nil
}

// UpdateIncentiveConfig is the registry-aware wrapper, see
// Pool.UpdateIncentiveConfig.
func (m *Manager) UpdateIncentiveConfig(cap AdminCap, poolID string, programIdx int, newPeriodAmount *uint64, newIntervalMs *int64, forcePreAllocate bool) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	err = p.UpdateIncentiveConfig(cap, programIdx, newPeriodAmount, newIntervalMs, forcePreAllocate, m.clock)
	m.audit.Record(cap.ID, "UpdateIncentiveConfig", poolID, programIdx, err)
	if err != nil {
		return err
	}
	m.emit(UpdateIncentiveConfigEvent{PoolID: poolID, ProgramID: p.Programs[programIdx].ID})
	return nil
}

// UpdateUnlockCountdownMs is the registry-aware wrapper, see
// Pool.UpdateUnlockCountdownMs.
func (m *Manager) UpdateUnlockCountdownMs(cap AdminCap, poolID string, newMs int64) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	err = p.UpdateUnlockCountdownMs(cap, newMs)
	m.audit.Record(cap.ID, "UpdateUnlockCountdownMs", poolID, -1, err)
	if err != nil {
		return err
	}
	m.emit(UpdateUnlockCountdownEvent{PoolID: poolID, NewMs: newMs})
	return nil
}

// Stake is the registry-aware wrapper around Pool.Stake.
func (m *Manager) Stake(poolID string, stakeCoin Coin, user string) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	if err := p.Stake(stakeCoin, m.clock, user); err != nil {
		return err
	}
	ledger := p.UserShares[user]
	m.emit(StakeEvent{
		PoolID:            poolID,
		TokenType:         stakeCoin.TokenType,
		User:              user,
		StakeAmount:       ledger.TotalShares(),
		StakeTsMs:         ledger.LastStakeMs,
		LastIndexSnapshot: ledger.LastIndexByProgram,
	})
	return nil
}

// Unsubscribe is the registry-aware wrapper around Pool.Unsubscribe.
func (m *Manager) Unsubscribe(poolID string, sharesOpt *uint64, user string) error {
	p, err := m.GetPool(poolID)
	if err != nil {
		return err
	}
	if err := p.Unsubscribe(sharesOpt, m.clock, user); err != nil {
		return err
	}
	ledger := p.UserShares[user]
	tr := ledger.Deactivating[len(ledger.Deactivating)-1]
	m.emit(UnsubscribeEvent{
		PoolID:             poolID,
		TokenType:          p.StakeTokenType,
		User:               user,
		UnsubscribedShares: tr.Shares,
		UnsubscribeTsMs:    tr.UnsubscribedMs,
		UnlockedTsMs:       tr.UnlockedMs,
	})
	return nil
}

// Unstake is the registry-aware wrapper around Pool.Unstake.
func (m *Manager) Unstake(poolID string, sharesOpt *uint64, user string) (Coin, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return Coin{}, err
	}
	now := m.clock.NowMs()
	coin, err := p.Unstake(sharesOpt, m.clock, user)
	if err != nil {
		return Coin{}, err
	}
	m.emit(UnstakeEvent{PoolID: poolID, TokenType: p.StakeTokenType, User: user, UnstakeAmount: coin.Amount, UnstakeTsMs: now})
	return coin, nil
}

// Harvest is the registry-aware wrapper around Pool.Harvest.
func (m *Manager) Harvest(poolID, incentiveTokenType, user string) (Coin, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return Coin{}, err
	}
	coin, err := p.Harvest(incentiveTokenType, m.clock, user)
	if err != nil {
		return Coin{}, err
	}
	m.emit(HarvestEvent{PoolID: poolID, IncentiveTokenType: incentiveTokenType, User: user, HarvestAmount: coin.Amount})
	return coin, nil
}

// GetUserLedger is a read-only lookup of a user's ledger in a pool.
func (m *Manager) GetUserLedger(poolID, user string) (*UserShareLedger, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	ledger, ok := p.UserShares[user]
	if !ok {
		return nil, NewError(UserShareNotFound, "no share ledger for user", map[string]interface{}{"user": user})
	}
	return ledger, nil
}

// PendingHarvest previews what Harvest would currently pay out for user in
// incentiveTokenType, without mutating any state. It allocates a scratch
// copy of the relevant index math rather than calling allocate_incentive
// for real, so it is safe to call from a read path.
func (m *Manager) PendingHarvest(poolID, incentiveTokenType, user string) (Coin, error) {
	p, err := m.GetPool(poolID)
	if err != nil {
		return Coin{}, err
	}
	ledger, ok := p.UserShares[user]
	if !ok {
		return Coin{}, NewError(UserShareNotFound, "no share ledger for user", map[string]interface{}{"user": user})
	}

	now := m.clock.NowMs()
	var owed uint64
	for _, prog := range p.Programs {
		if prog.TokenType != incentiveTokenType {
			continue
		}
		projectedIndex := prog.PriceIndex
		if prog.Active {
			interval := prog.Config.IntervalMs
			alignedNow := (now / interval) * interval
			if alignedNow > prog.LastAllocateMs && p.TotalActiveShares > 0 {
				elapsed := uint64(alignedNow - prog.LastAllocateMs)
				periodAmount, err := periodAllocation(prog.Config.PeriodAmount, elapsed, uint64(interval))
				if err != nil {
					return Coin{}, err
				}
				delta, err := indexDelta(periodAmount, p.TotalActiveShares)
				if err != nil {
					return Coin{}, err
				}
				projectedIndex += delta
			}
		}

		last, seen := ledger.LastIndexByProgram[prog.ID]
		if !seen {
			last = 0
		}
		activeOwed, err := owedFromIndex(ledger.ActiveShares, projectedIndex-last)
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
		if programOwed > prog.Balance {
			programOwed = prog.Balance
		}
		owed += programOwed
	}
	return Coin{TokenType: incentiveTokenType, Amount: owed}, nil
}
