// Command poolsrv wires a logger, clock, bbolt-backed store, audit
// recorder, and the HTTP/websocket front end together into one running
// stakepool engine, following the teacher's single-binary DAO server
// entrypoint.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gokitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bockstake/stakepool/api"
	"github.com/bockstake/stakepool/auditlog"
	"github.com/bockstake/stakepool/pool"
	"github.com/bockstake/stakepool/storage"
)

var (
	listenAddr  string
	dataDir     string
	auditDSN    string
	minUnlockMs int64
	maxProgs    int
)

var rootCmd = &cobra.Command{
	Use:   "poolsrv",
	Short: "Run the stakepool HTTP and websocket server",
	RunE:  runServer,
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "./poolsrv.db", "path to the bbolt database file")
	rootCmd.Flags().StringVar(&auditDSN, "audit-dsn", "", "MySQL DSN for the event audit log (empty disables it)")
	rootCmd.Flags().Int64Var(&minUnlockMs, "min-unlock-countdown-ms", 60_000, "minimum unlock countdown the engine will accept for new pools")
	rootCmd.Flags().IntVar(&maxProgs, "max-programs-per-pool", 64, "maximum incentive programs per pool, 0 for unbounded")
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	logger = gokitlog.With(logger, "ts", gokitlog.DefaultTimestampUTC, "caller", gokitlog.DefaultCaller)

	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	capabilityAudit := pool.NewAuditLogger(logrus.StandardLogger())
	config := &pool.EngineConfig{MinUnlockCountdownMs: minUnlockMs, MaxProgramsPerPool: maxProgs}
	manager := pool.NewManager(logger, pool.NewSystemClock(), capabilityAudit, config)

	if err := store.Hydrate(manager); err != nil {
		return fmt.Errorf("hydrate from %s: %w", dataDir, err)
	}

	if auditDSN != "" {
		recorder, err := auditlog.NewRecorder(auditDSN)
		if err != nil {
			return fmt.Errorf("connect audit log: %w", err)
		}
		defer recorder.Close()
		manager.AddEmitter(recorder)
	}

	manager.AddEmitter(persistingEmitter{manager: manager, store: store})

	server := api.NewServer(api.ServerConfig{ListenAddr: listenAddr}, manager)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	_ = level.Info(logger).Log("msg", "poolsrv listening", "addr", listenAddr, "data_dir", dataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		_ = level.Info(logger).Log("msg", "shutting down")
		return nil
	}
}

// persistingEmitter writes the affected pool and user ledger back to
// storage.Store after every event, keeping the bbolt file in sync with
// the in-memory Manager without the handlers themselves knowing storage
// exists.
type persistingEmitter struct {
	manager *pool.Manager
	store   *storage.Store
}

func (e persistingEmitter) Emit(ev pool.Event) {
	poolID, user := eventSubjects(ev)
	if poolID == "" {
		return
	}
	p, err := e.manager.GetPool(poolID)
	if err != nil {
		return
	}
	_ = e.store.SavePool(p)
	if user == "" {
		return
	}
	if ledger, ok := p.UserShares[user]; ok {
		_ = e.store.SaveUserLedger(poolID, ledger)
	} else {
		_ = e.store.DeleteUserLedger(poolID, user)
	}
}

func eventSubjects(ev pool.Event) (poolID, user string) {
	switch e := ev.(type) {
	case pool.NewPoolEvent:
		return e.PoolID, ""
	case pool.CreateIncentiveProgramEvent:
		return e.PoolID, ""
	case pool.DeactivateIncentiveProgramEvent:
		return e.PoolID, ""
	case pool.ActivateIncentiveProgramEvent:
		return e.PoolID, ""
	case pool.RemoveIncentiveProgramEvent:
		return e.PoolID, ""
	case pool.UpdateIncentiveConfigEvent:
		return e.PoolID, ""
	case pool.UpdateUnlockCountdownEvent:
		return e.PoolID, ""
	case pool.StakeEvent:
		return e.PoolID, e.User
	case pool.UnsubscribeEvent:
		return e.PoolID, e.User
	case pool.UnstakeEvent:
		return e.PoolID, e.User
	case pool.HarvestEvent:
		return e.PoolID, e.User
	default:
		return "", ""
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
