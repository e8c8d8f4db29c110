// Command station is the station process entrypoint (spec.md §1): it
// opens the C1 repositories, wires the C3/C4/C5/C6 pipeline, and runs the
// expiration sweeper. Mirrors the teacher's cmd/synnergy + cmd/config
// split of a node binary from its config package.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"orbit-station/internal/bootstrap"
	"orbit-station/internal/blockchain"
	"orbit-station/internal/config"
	"orbit-station/internal/engine"
	"orbit-station/internal/executor"
	"orbit-station/internal/logging"
	"orbit-station/internal/permission"
	"orbit-station/internal/policy"
	"orbit-station/internal/repository"
)

func main() {
	root := &cobra.Command{Use: "station"}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("env", "", "optional config overlay name (e.g. production)")
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	env, _ := cmd.Flags().GetString("env")
	return config.Load(path, env)
}

func serveCmd() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the station's request engine and expiration sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			logger := logging.New("station", level)
			log := logging.Component(logger, "station")

			repos, err := repository.Open(cfg.Station.DataDir, log)
			if err != nil {
				return fmt.Errorf("open repositories: %w", err)
			}
			if err := repos.RebuildIfSchemaChanged(); err != nil {
				return fmt.Errorf("rebuild indices: %w", err)
			}

			if seedPath != "" {
				seed, err := bootstrap.LoadSeed(seedPath)
				if err != nil {
					return err
				}
				if err := bootstrap.Install(repos, seed, log); err != nil {
					return fmt.Errorf("bootstrap install: %w", err)
				}
			}

			perm := permission.New(repos.Users, repos.Permissions)
			eval := policy.New(repos.Users, repos.AddressBook, repos.Assets, repos.NamedRules, repos.RequestPolicies)
			expiry := time.Duration(cfg.Requests.DefaultExpirationHours) * time.Hour
			eng := engine.New(repos, perm, eval, engine.TimeScheduler{}, expiry, log)

			// No outbound blockchain/canister/upgrader clients are wired by
			// default: those concrete collaborators are the host
			// platform's job (spec.md §1 "out of scope: the host
			// platform's candid/HTTP glue; specific blockchain wire
			// formats"). A deployment that needs Transfer/canister/
			// upgrade operations to actually execute supplies real
			// blockchain.LedgerClient/EthClient, executor.CanisterHost,
			// and executor.UpgraderHost implementations here; until then
			// those operations fail with an Adapter-class error rather
			// than panicking, per spec.md §7.
			chains := blockchain.NewRegistry(nil, nil)
			executor.RegisterAll(eng, repos, chains, nil, nil)

			if err := eng.Reconcile(time.Now()); err != nil {
				return fmt.Errorf("cold-start reconciliation: %w", err)
			}
			log.Info("station reconciled, entering sweep loop")

			sweepInterval := time.Duration(cfg.Requests.SweepIntervalSeconds) * time.Second
			if sweepInterval <= 0 {
				sweepInterval = time.Minute
			}
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for range ticker.C {
				n, err := eng.Sweep(time.Now())
				if err != nil {
					log.WithError(err).Error("sweep failed")
					continue
				}
				if n > 0 {
					log.WithField("expired", n).Info("swept expired requests")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "optional install-time seed YAML file (admin_identity, admin_name)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "rebuild every repository's secondary indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			logger := logging.New("station-migrate", level)
			log := logging.Component(logger, "migrate")

			repos, err := repository.Open(cfg.Station.DataDir, log)
			if err != nil {
				return err
			}
			if err := repos.Rebuild(); err != nil {
				return err
			}
			log.Info("rebuild complete")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "install the well-known groups, initial admin, and default policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedPath == "" {
				return fmt.Errorf("--seed is required")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			logger := logging.New("station-seed", level)
			log := logging.Component(logger, "seed")

			repos, err := repository.Open(cfg.Station.DataDir, log)
			if err != nil {
				return err
			}
			seed, err := bootstrap.LoadSeed(seedPath)
			if err != nil {
				return err
			}
			return bootstrap.Install(repos, seed, log)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "install-time seed YAML file (admin_identity, admin_name)")
	return cmd
}
