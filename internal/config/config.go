package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all powerwatch configuration.
type Config struct {
	Status  StatusConfig  `mapstructure:"status" yaml:"status"`
	Email   EmailConfig   `mapstructure:"email" yaml:"email"`
	Jobs    JobsConfig    `mapstructure:"jobs" yaml:"jobs"`
	Alerts  AlertsConfig  `mapstructure:"alerts" yaml:"alerts"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StatusConfig defines where the electricity status is read from.
type StatusConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// EmailConfig defines Resend settings.
type EmailConfig struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	From     string `mapstructure:"from" yaml:"from"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// JobsConfig holds per-job rule settings.
type JobsConfig struct {
	Delay  DelayJobConfig  `mapstructure:"delay" yaml:"delay"`
	Outage OutageJobConfig `mapstructure:"outage" yaml:"outage"`
}

// DelayJobConfig defines the staleness window.
type DelayJobConfig struct {
	MinAge     string   `mapstructure:"min_age" yaml:"min_age"`
	MaxAge     string   `mapstructure:"max_age" yaml:"max_age"`
	Recipients []string `mapstructure:"recipients" yaml:"recipients"`
}

// OutageJobConfig defines the outage window.
type OutageJobConfig struct {
	MaxAge     string   `mapstructure:"max_age" yaml:"max_age"`
	Recipients []string `mapstructure:"recipients" yaml:"recipients"`
}

// AlertsConfig defines additional alerting integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack" yaml:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Secret  string `mapstructure:"secret" yaml:"secret,omitempty"`
}

// ServerConfig defines the status API server.
type ServerConfig struct {
	Listen       string `mapstructure:"listen" yaml:"listen"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
	CronSecret   string `mapstructure:"cron_secret" yaml:"cron_secret,omitempty"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ConfigError reports configuration that prevents a command from starting.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrMissingAPIKey is wrapped in a ConfigError when no Resend key is configured.
var ErrMissingAPIKey = errors.New("RESEND_API_KEY environment variable is not set")

// Options controls where configuration is read from.
type Options struct {
	// File is an explicit config file. When empty, powerwatch.yaml is
	// searched in the working directory and ~/.powerwatch.
	File string
	// EnvFile is a dotenv file loaded before reading the environment.
	// When empty, ./.env is loaded if present.
	EnvFile string
}

// Load reads configuration from the dotenv file, config file and environment.
func Load(opts Options) (*Config, error) {
	if err := loadDotenv(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".powerwatch"))
		}
		v.SetConfigName("powerwatch")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("POWERWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("email.api_key", "RESEND_API_KEY", "POWERWATCH_EMAIL_API_KEY")
	_ = v.BindEnv("server.cron_secret", "CRON_SECRET", "POWERWATCH_SERVER_CRON_SECRET")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func loadDotenv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("status.url", d.Status.URL)
	v.SetDefault("status.timeout", d.Status.Timeout)
	v.SetDefault("email.from", d.Email.From)
	v.SetDefault("email.base_url", "")
	v.SetDefault("email.timezone", d.Email.Timezone)
	v.SetDefault("jobs.delay.min_age", d.Jobs.Delay.MinAge)
	v.SetDefault("jobs.delay.max_age", d.Jobs.Delay.MaxAge)
	v.SetDefault("jobs.delay.recipients", d.Jobs.Delay.Recipients)
	v.SetDefault("jobs.outage.max_age", d.Jobs.Outage.MaxAge)
	v.SetDefault("jobs.outage.recipients", d.Jobs.Outage.Recipients)
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", d.Alerts.Slack.Channel)
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Status: StatusConfig{
			URL:     "https://pmr-b5.vercel.app/api/electricity-status",
			Timeout: "0s",
		},
		Email: EmailConfig{
			From:     "PMR B5 <onboarding@resend.dev>",
			Timezone: "Asia/Jakarta",
		},
		Jobs: JobsConfig{
			Delay: DelayJobConfig{
				MinAge:     "10m",
				MaxAge:     "90m",
				Recipients: []string{"achmadjeihan@gmail.com", "cahyanilaili@gmail.com"},
			},
			Outage: OutageJobConfig{
				MaxAge:     "10m",
				Recipients: []string{"achmadjeihan@gmail.com"},
			},
		},
		Alerts: AlertsConfig{
			Slack: SlackConfig{Channel: "#electricity"},
		},
		Server: ServerConfig{
			Listen:       ":8080",
			ReadTimeout:  "30s",
			WriteTimeout: "60s",
		},
		Storage: StorageConfig{Path: filepath.Join(home, ".powerwatch", "status.db")},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Write stores cfg as YAML at path. Secrets are omitted when empty.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := url.ParseRequestURI(c.Status.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("status.url: %w", err))
	}
	if _, err := c.StatusTimeout(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, _, err := c.DelayWindow(); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := c.OutageMaxAge(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		result = multierror.Append(result, errors.New("alerts.slack.webhook_url is required when slack is enabled"))
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		result = multierror.Append(result, errors.New("alerts.webhook.url is required when webhook is enabled"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// ValidateNotify checks the API key and the recipients of the given jobs.
// It must pass before any network activity happens.
func (c *Config) ValidateNotify(jobs ...string) error {
	if c.Email.APIKey == "" {
		return &ConfigError{Err: ErrMissingAPIKey}
	}
	var result *multierror.Error
	for _, job := range jobs {
		var recipients []string
		switch job {
		case "delay":
			recipients = c.Jobs.Delay.Recipients
		case "outage":
			recipients = c.Jobs.Outage.Recipients
		default:
			result = multierror.Append(result, fmt.Errorf("unknown job %q", job))
			continue
		}
		if len(recipients) == 0 {
			result = multierror.Append(result, fmt.Errorf("jobs.%s.recipients is empty", job))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

// StatusTimeout parses status.timeout. Zero means no client timeout.
func (c *Config) StatusTimeout() (time.Duration, error) {
	return parseDuration("status.timeout", c.Status.Timeout)
}

// DelayWindow parses the staleness window bounds.
func (c *Config) DelayWindow() (minAge, maxAge time.Duration, err error) {
	minAge, err = parseDuration("jobs.delay.min_age", c.Jobs.Delay.MinAge)
	if err != nil {
		return 0, 0, err
	}
	maxAge, err = parseDuration("jobs.delay.max_age", c.Jobs.Delay.MaxAge)
	if err != nil {
		return 0, 0, err
	}
	if minAge >= maxAge {
		return 0, 0, fmt.Errorf("jobs.delay: min_age %s must be below max_age %s", minAge, maxAge)
	}
	return minAge, maxAge, nil
}

// OutageMaxAge parses the outage freshness bound.
func (c *Config) OutageMaxAge() (time.Duration, error) {
	d, err := parseDuration("jobs.outage.max_age", c.Jobs.Outage.MaxAge)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("jobs.outage.max_age must be positive, got %s", d)
	}
	return d, nil
}

// ServerTimeouts parses the read and write timeouts, falling back to 30s/60s.
func (c *Config) ServerTimeouts() (read, write time.Duration) {
	read, _ = time.ParseDuration(c.Server.ReadTimeout)
	if read == 0 {
		read = 30 * time.Second
	}
	write, _ = time.ParseDuration(c.Server.WriteTimeout)
	if write == 0 {
		write = 60 * time.Second
	}
	return read, write
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}
