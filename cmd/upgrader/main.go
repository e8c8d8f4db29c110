// Command upgrader is the disaster-recovery committee sibling service
// (spec.md §4.8, §1: "disaster-recovery committee logic in the companion
// upgrader"). It is a separate binary from cmd/station because it must
// keep functioning even when the station itself is unresponsive.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"orbit-station/internal/config"
	"orbit-station/internal/ids"
	"orbit-station/internal/logging"
	"orbit-station/internal/recovery"
)

// unconfiguredHost is the default recovery.Host: every call fails with a
// descriptive error rather than panicking, matching cmd/station's
// nil-adapter default — the concrete install/snapshot/restore mechanics
// are the host platform's job (spec.md §1), supplied by a real
// recovery.Host implementation in a production deployment.
type unconfiguredHost struct{}

func (unconfiguredHost) InstallCode(context.Context, string, string, recovery.InstallMode) error {
	return fmt.Errorf("upgrader: no install-code host configured")
}
func (unconfiguredHost) Snapshot(context.Context, string, bool) (string, error) {
	return "", fmt.Errorf("upgrader: no snapshot host configured")
}
func (unconfiguredHost) Restore(context.Context, string) error {
	return fmt.Errorf("upgrader: no restore host configured")
}
func (unconfiguredHost) Prune(context.Context, recovery.PruneTarget) error {
	return fmt.Errorf("upgrader: no prune host configured")
}
func (unconfiguredHost) Start(context.Context) error {
	return fmt.Errorf("upgrader: no start host configured")
}

func main() {
	root := &cobra.Command{Use: "upgrader"}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("env", "", "optional config overlay name (e.g. production)")
	root.AddCommand(serveCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	env, _ := cmd.Flags().GetString("env")
	return config.Load(path, env)
}

func buildCommittee(cfg *config.Config) recovery.Committee {
	members := make([]ids.Principal, 0, len(cfg.Upgrader.CommitteeMembers))
	for _, m := range cfg.Upgrader.CommitteeMembers {
		members = append(members, ids.Principal(m))
	}
	return recovery.Committee{Users: members, Quorum: cfg.Upgrader.Quorum}
}

// serveCmd runs the committee's expiration sweeper. Actual
// request_disaster_recovery/set_disaster_recovery_committee/get_logs calls
// arrive over the host platform's RPC glue (out of scope per spec.md §1);
// this loop only keeps recovery.Controller's InProgress state from
// sticking past its expiration window (spec.md §4.8).
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the disaster-recovery committee's expiration sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return err
			}
			logger := logging.New("upgrader", level)
			log := logging.Component(logger, "upgrader")

			committee := buildCommittee(cfg)
			if len(committee.Users) == 0 {
				log.Warn("no committee members configured; recovery requests will all be rejected")
			}

			expiry := time.Duration(cfg.Upgrader.ExpiryMinutes) * time.Minute
			ctrl := recovery.New(committee, unconfiguredHost{}, expiry, log)

			interval := time.Duration(cfg.Upgrader.SweepIntervalSeconds) * time.Second
			if interval <= 0 {
				interval = time.Minute
			}
			log.WithField("quorum", committee.Quorum).Info("upgrader sweeper started")

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for range ticker.C {
				ctrl.Sweep(time.Now())
			}
			return nil
		},
	}
}
