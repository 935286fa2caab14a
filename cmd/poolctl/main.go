// Command poolctl drives a pool.Manager straight from the command line,
// against the same bbolt database poolsrv serves over HTTP -- for admin
// and scripted operations that don't need the HTTP/websocket surface.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-kit/log/level"
	gokitlog "github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/bockstake/stakepool/pool"
	"github.com/bockstake/stakepool/storage"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "poolctl",
	Short: "Administer a stakepool engine from the command line",
	Long:  "poolctl reads and writes the same bbolt database poolsrv serves, for one-off admin operations and scripting.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./poolctl.db", "path to the bbolt database file")
}

// withManager opens the store, hydrates a fresh Manager from it, runs fn,
// then closes the store. Callers are responsible for persisting whatever
// they mutated before fn returns.
func withManager(fn func(m *pool.Manager, store *storage.Store) error) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	logger := level.NewFilter(gokitlog.NewLogfmtLogger(os.Stderr), level.AllowInfo())
	m := pool.NewManager(logger, pool.NewSystemClock(), nil, nil)
	if err := store.Hydrate(m); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	return fn(m, store)
}

func persistPool(store *storage.Store, p *pool.Pool) error {
	if err := store.SavePool(p); err != nil {
		return fmt.Errorf("save pool %s: %w", p.ID, err)
	}
	return nil
}

func persistUser(store *storage.Store, p *pool.Pool, user string) error {
	ledger, ok := p.UserShares[user]
	if !ok {
		return store.DeleteUserLedger(p.ID, user)
	}
	return store.SaveUserLedger(p.ID, ledger)
}

func newPoolCmd() *cobra.Command {
	var stakeTokenType string
	var unlockCountdownMs int64
	cmd := &cobra.Command{
		Use:   "new-pool",
		Short: "Create a new pool and print its admin capability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				p, cap, err := m.NewPool(stakeTokenType, unlockCountdownMs)
				if err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				fmt.Printf("pool_id=%s capability_id=%s\n", p.ID, cap.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&stakeTokenType, "stake-token", "", "stake token type (required)")
	cmd.Flags().Int64Var(&unlockCountdownMs, "unlock-countdown-ms", 0, "unlock countdown in milliseconds (required)")
	cmd.MarkFlagRequired("stake-token")
	cmd.MarkFlagRequired("unlock-countdown-ms")
	return cmd
}

func getPoolCmd() *cobra.Command {
	var poolID string
	cmd := &cobra.Command{
		Use:   "get-pool",
		Short: "Print a pool's current state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				fmt.Printf("id=%s stake_token=%s unlock_countdown_ms=%d active_shares=%d stake_balance=%d programs=%d\n",
					p.ID, p.StakeTokenType, p.UnlockCountdownMs, p.TotalActiveShares, p.StakeBalance, len(p.Programs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.MarkFlagRequired("pool")
	return cmd
}

func createProgramCmd() *cobra.Command {
	var poolID, capID, tokenType string
	var initialBalance, periodAmount uint64
	var intervalMs int64
	cmd := &cobra.Command{
		Use:   "create-program",
		Short: "Create an incentive program on a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				cap := pool.AdminCap{ID: capID, PoolID: poolID}
				prog, err := m.CreateIncentiveProgram(cap, poolID, tokenType, initialBalance, periodAmount, intervalMs)
				if err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				fmt.Printf("program_id=%s\n", prog.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&capID, "cap-id", "", "admin capability id (required)")
	cmd.Flags().StringVar(&tokenType, "incentive-token", "", "incentive token type (required)")
	cmd.Flags().Uint64Var(&initialBalance, "initial-balance", 0, "initial incentive balance (required)")
	cmd.Flags().Uint64Var(&periodAmount, "period-amount", 0, "incentive amount paid out per interval (required)")
	cmd.Flags().Int64Var(&intervalMs, "interval-ms", 0, "allocation interval in milliseconds (required)")
	for _, f := range []string{"pool", "cap-id", "incentive-token", "initial-balance", "period-amount", "interval-ms"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func programLifecycleCmd(use, short string, apply func(m *pool.Manager, cap pool.AdminCap, poolID string, idx int, tokenType string) error) *cobra.Command {
	var poolID, capID, tokenType string
	var idx int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				cap := pool.AdminCap{ID: capID, PoolID: poolID}
				if err := apply(m, cap, poolID, idx, tokenType); err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				return persistPool(store, p)
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&capID, "cap-id", "", "admin capability id (required)")
	cmd.Flags().IntVar(&idx, "idx", 0, "program index (required)")
	cmd.Flags().StringVar(&tokenType, "token-type", "", "incentive token type (required)")
	for _, f := range []string{"pool", "cap-id", "idx", "token-type"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func removeProgramCmd() *cobra.Command {
	var poolID, capID, tokenType string
	var idx int
	cmd := &cobra.Command{
		Use:   "remove-program",
		Short: "Remove an incentive program and print the returned balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				cap := pool.AdminCap{ID: capID, PoolID: poolID}
				coin, err := m.RemoveIncentiveProgram(cap, poolID, idx, tokenType)
				if err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				fmt.Printf("returned_token=%s returned_amount=%d\n", coin.TokenType, coin.Amount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&capID, "cap-id", "", "admin capability id (required)")
	cmd.Flags().IntVar(&idx, "idx", 0, "program index (required)")
	cmd.Flags().StringVar(&tokenType, "token-type", "", "incentive token type (required)")
	for _, f := range []string{"pool", "cap-id", "idx", "token-type"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func updateConfigCmd() *cobra.Command {
	var poolID, capID string
	var idx int
	var periodAmount uint64
	var intervalMs int64
	var hasPeriodAmount, hasIntervalMs, forcePreAllocate bool
	cmd := &cobra.Command{
		Use:   "update-config",
		Short: "Update an incentive program's period amount and/or interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				cap := pool.AdminCap{ID: capID, PoolID: poolID}
				var periodPtr *uint64
				var intervalPtr *int64
				if hasPeriodAmount {
					periodPtr = &periodAmount
				}
				if hasIntervalMs {
					intervalPtr = &intervalMs
				}
				if err := m.UpdateIncentiveConfig(cap, poolID, idx, periodPtr, intervalPtr, forcePreAllocate); err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				return persistPool(store, p)
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&capID, "cap-id", "", "admin capability id (required)")
	cmd.Flags().IntVar(&idx, "idx", 0, "program index (required)")
	cmd.Flags().Uint64Var(&periodAmount, "period-amount", 0, "new period amount")
	cmd.Flags().Int64Var(&intervalMs, "interval-ms", 0, "new interval in milliseconds")
	cmd.Flags().BoolVar(&forcePreAllocate, "force-pre-allocate", false, "allocate every elapsed interval at the old rate before applying the change")
	cmd.MarkFlagRequired("pool")
	cmd.MarkFlagRequired("cap-id")
	cmd.MarkFlagRequired("idx")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasPeriodAmount = cmd.Flags().Changed("period-amount")
		hasIntervalMs = cmd.Flags().Changed("interval-ms")
	}
	return cmd
}

func updateUnlockCountdownCmd() *cobra.Command {
	var poolID, capID string
	var newMs int64
	cmd := &cobra.Command{
		Use:   "update-unlock-countdown",
		Short: "Change a pool's unlock countdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				cap := pool.AdminCap{ID: capID, PoolID: poolID}
				if err := m.UpdateUnlockCountdownMs(cap, poolID, newMs); err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				return persistPool(store, p)
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&capID, "cap-id", "", "admin capability id (required)")
	cmd.Flags().Int64Var(&newMs, "new-unlock-countdown-ms", 0, "new unlock countdown in milliseconds (required)")
	for _, f := range []string{"pool", "cap-id", "new-unlock-countdown-ms"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func stakeCmd() *cobra.Command {
	var poolID, user string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake into a pool on behalf of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				if err := m.Stake(poolID, pool.Coin{TokenType: p.StakeTokenType, Amount: amount}, user); err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				return persistUser(store, p, user)
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "stake amount (required)")
	for _, f := range []string{"pool", "user", "amount"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func sharesCmd(use, short string, apply func(m *pool.Manager, poolID string, sharesOpt *uint64, user string) (pool.Coin, error), printResult bool) *cobra.Command {
	var poolID, user string
	var shares uint64
	var hasShares bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				var sharesPtr *uint64
				if hasShares {
					sharesPtr = &shares
				}
				coin, err := apply(m, poolID, sharesPtr, user)
				if err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				if err := persistUser(store, p, user); err != nil {
					return err
				}
				if printResult {
					fmt.Printf("token=%s amount=%d\n", coin.TokenType, coin.Amount)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().Uint64Var(&shares, "shares", 0, "shares to act on (default: as much as applicable)")
	cmd.MarkFlagRequired("pool")
	cmd.MarkFlagRequired("user")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		hasShares = cmd.Flags().Changed("shares")
	}
	return cmd
}

func harvestCmd() *cobra.Command {
	var poolID, user, tokenType string
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest a user's accrued incentive for one token type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				coin, err := m.Harvest(poolID, tokenType, user)
				if err != nil {
					return err
				}
				p, err := m.GetPool(poolID)
				if err != nil {
					return err
				}
				if err := persistPool(store, p); err != nil {
					return err
				}
				if err := persistUser(store, p, user); err != nil {
					return err
				}
				fmt.Printf("token=%s amount=%d\n", coin.TokenType, coin.Amount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&tokenType, "token-type", "", "incentive token type (required)")
	for _, f := range []string{"pool", "user", "token-type"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func getLedgerCmd() *cobra.Command {
	var poolID, user string
	cmd := &cobra.Command{
		Use:   "get-ledger",
		Short: "Print a user's share ledger in a pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				ledger, err := m.GetUserLedger(poolID, user)
				if err != nil {
					return err
				}
				fmt.Printf("active_shares=%d deactivating_tranches=%d total_shares=%d\n",
					ledger.ActiveShares, len(ledger.Deactivating), ledger.TotalShares())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.MarkFlagRequired("pool")
	cmd.MarkFlagRequired("user")
	return cmd
}

func pendingHarvestCmd() *cobra.Command {
	var poolID, user, tokenType string
	cmd := &cobra.Command{
		Use:   "pending-harvest",
		Short: "Preview what harvest would currently pay out, without mutating state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *pool.Manager, store *storage.Store) error {
				coin, err := m.PendingHarvest(poolID, tokenType, user)
				if err != nil {
					return err
				}
				fmt.Printf("token=%s amount=%d\n", coin.TokenType, coin.Amount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool id (required)")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&tokenType, "token-type", "", "incentive token type (required)")
	for _, f := range []string{"pool", "user", "token-type"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func main() {
	rootCmd.AddCommand(
		newPoolCmd(),
		getPoolCmd(),
		createProgramCmd(),
		programLifecycleCmd("deactivate-program", "Deactivate an incentive program", func(m *pool.Manager, cap pool.AdminCap, poolID string, idx int, tokenType string) error {
			return m.DeactivateIncentiveProgram(cap, poolID, idx, tokenType)
		}),
		programLifecycleCmd("activate-program", "Reactivate a deactivated incentive program", func(m *pool.Manager, cap pool.AdminCap, poolID string, idx int, tokenType string) error {
			return m.ActivateIncentiveProgram(cap, poolID, idx, tokenType)
		}),
		removeProgramCmd(),
		updateConfigCmd(),
		updateUnlockCountdownCmd(),
		stakeCmd(),
		sharesCmd("unsubscribe", "Move active shares into the deactivating queue", func(m *pool.Manager, poolID string, sharesOpt *uint64, user string) (pool.Coin, error) {
			return pool.Coin{}, m.Unsubscribe(poolID, sharesOpt, user)
		}, false),
		sharesCmd("unstake", "Withdraw cleared deactivating shares as principal", func(m *pool.Manager, poolID string, sharesOpt *uint64, user string) (pool.Coin, error) {
			return m.Unstake(poolID, sharesOpt, user)
		}, true),
		harvestCmd(),
		getLedgerCmd(),
		pendingHarvestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
