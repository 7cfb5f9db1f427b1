package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pmr-b5/powerwatch/internal/config"
	"github.com/pmr-b5/powerwatch/pkg/alerts"
	"github.com/pmr-b5/powerwatch/pkg/monitor"
	"github.com/pmr-b5/powerwatch/pkg/status"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "powerwatch",
	Short: "powerwatch - electricity status monitor for PMR B5",
	Long: `powerwatch checks the PMR B5 electricity-status API and emails a warning
when the status stops updating or reports an outage. It is meant to be run
periodically by an external scheduler. It can also host the status API itself.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err once. Fetch failures are already logged by the
// checker.
func reportError(w io.Writer, err error) {
	var fetchErr *status.FetchError
	if errors.As(err, &fetchErr) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./powerwatch.yaml or ~/.powerwatch/powerwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: ./.env if present)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: cfgFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initEmail creates the Resend notifier from config.
func initEmail(cfg *config.Config) (*alerts.EmailNotifier, error) {
	var opts []alerts.EmailOption
	if cfg.Email.BaseURL != "" {
		opts = append(opts, alerts.WithBaseURL(cfg.Email.BaseURL))
	}
	n, err := alerts.NewEmailNotifier(cfg.Email.APIKey, cfg.Email.From, opts...)
	if err != nil {
		return nil, fmt.Errorf("init email: %w", err)
	}
	return n, nil
}

// initNotifiers creates alert notifiers from config. Email comes first
// when an API key is configured.
func initNotifiers(cfg *config.Config) ([]alerts.Notifier, error) {
	var notifiers []alerts.Notifier

	if cfg.Email.APIKey != "" {
		email, err := initEmail(cfg)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers, nil
}

// initRules builds the named rules from config.
func initRules(cfg *config.Config, names ...string) ([]monitor.Rule, error) {
	loc, err := alerts.LoadLocation(cfg.Email.Timezone)
	if err != nil {
		return nil, err
	}

	rules := make([]monitor.Rule, 0, len(names))
	for _, name := range names {
		switch name {
		case string(alerts.KindDelay):
			minAge, maxAge, err := cfg.DelayWindow()
			if err != nil {
				return nil, err
			}
			rule := monitor.NewDelayRule(cfg.Jobs.Delay.Recipients, loc)
			rule.MinAge, rule.MaxAge = minAge, maxAge
			rules = append(rules, rule)
		case string(alerts.KindOutage):
			maxAge, err := cfg.OutageMaxAge()
			if err != nil {
				return nil, err
			}
			rule := monitor.NewOutageRule(cfg.Jobs.Outage.Recipients, loc)
			rule.MaxAge = maxAge
			rules = append(rules, rule)
		default:
			return nil, fmt.Errorf("unknown job %q", name)
		}
	}
	return rules, nil
}

// initFetcher creates the status fetcher from config.
func initFetcher(cfg *config.Config) (*status.Fetcher, error) {
	timeout, err := cfg.StatusTimeout()
	if err != nil {
		return nil, err
	}
	return status.NewFetcher(cfg.Status.URL, timeout), nil
}
