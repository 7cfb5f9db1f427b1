package cli

import (
	"github.com/spf13/cobra"

	"github.com/pmr-b5/powerwatch/pkg/monitor"
)

var delayCmd = &cobra.Command{
	Use:   "delay",
	Short: "Warn when the status has not been updated for 10-90 minutes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJobs(cmd, "delay")
	},
}

var outageCmd = &cobra.Command{
	Use:   "outage",
	Short: "Warn when a fresh status reports the electricity is down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJobs(cmd, "outage")
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the outage and delay checks against a single fetch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJobs(cmd, "outage", "delay")
	},
}

func init() {
	rootCmd.AddCommand(delayCmd)
	rootCmd.AddCommand(outageCmd)
	rootCmd.AddCommand(checkCmd)
}

// runJobs fetches the status once and evaluates the named jobs. Only
// configuration and fetch failures are returned; delivery failures are
// logged by the checker.
func runJobs(cmd *cobra.Command, jobs ...string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateNotify(jobs...); err != nil {
		return err
	}

	logger := newLogger(cfg)

	notifiers, err := initNotifiers(cfg)
	if err != nil {
		return err
	}
	rules, err := initRules(cfg, jobs...)
	if err != nil {
		return err
	}
	fetcher, err := initFetcher(cfg)
	if err != nil {
		return err
	}

	checker := monitor.NewChecker(fetcher, notifiers, logger,
		monitor.WithOutput(cmd.OutOrStdout()),
	)

	_, err = checker.Run(cmd.Context(), rules...)
	return err
}
