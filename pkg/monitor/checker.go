package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pmr-b5/powerwatch/internal/metrics"
	"github.com/pmr-b5/powerwatch/pkg/alerts"
	"github.com/pmr-b5/powerwatch/pkg/model"
)

// Source yields the current status record.
type Source interface {
	Fetch(ctx context.Context) (*model.StatusRecord, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*model.StatusRecord, error)

func (f SourceFunc) Fetch(ctx context.Context) (*model.StatusRecord, error) { return f(ctx) }

// Checker runs the fetch, evaluate, notify pipeline shared by all jobs.
type Checker struct {
	source    Source
	notifiers []alerts.Notifier
	metrics   *metrics.Recorder
	logger    *slog.Logger
	out       io.Writer
	now       func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithOutput sets where progress lines are written. Defaults to io.Discard.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.out = w }
}

// WithClock overrides the wall clock used to compute record age.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Checker) { c.metrics = r }
}

// NewChecker creates a checker reading from source and alerting through notifiers.
func NewChecker(source Source, notifiers []alerts.Notifier, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		source:    source,
		notifiers: notifiers,
		logger:    logger,
		out:       io.Discard,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches the status once and evaluates every rule against it.
// A fetch failure is returned as-is and no rule is evaluated. Delivery
// failures are logged and counted in the results but never returned.
func (c *Checker) Run(ctx context.Context, rules ...Rule) ([]model.CheckResult, error) {
	runID := uuid.New().String()
	logger := c.logger.With("run_id", runID)

	c.printf("Checking electricity status...\n")
	rec, err := c.source.Fetch(ctx)
	if err != nil {
		c.metrics.FetchFailed()
		logger.Error("could not fetch electricity status", "error", err)
		return nil, err
	}

	now := c.now().UTC()
	age := rec.AgeMinutes(now)
	c.metrics.ObserveStatus(age, rec.IsOn)
	c.printf("Time since last update: %.2f minutes\n", age)
	logger.Debug("status fetched",
		"status", rec.Status,
		"last_updated", rec.LastUpdated,
		"age_minutes", age,
	)

	results := make([]model.CheckResult, 0, len(rules))
	for _, rule := range rules {
		result := model.CheckResult{
			RunID:       runID,
			Job:         rule.Name(),
			Action:      model.ActionNone,
			AgeMinutes:  age,
			Status:      rec.Status,
			LastUpdated: rec.LastUpdated,
		}

		if !rule.ShouldAlert(*rec, age) {
			c.printf("%s\n", rule.QuietMessage(*rec))
			c.metrics.CheckDone(rule.Name(), string(result.Action))
			results = append(results, result)
			continue
		}

		alert, err := rule.Alert(*rec, age)
		if err != nil {
			return results, fmt.Errorf("%s: build alert: %w", rule.Name(), err)
		}

		logger.Warn("alert condition met",
			"job", rule.Name(),
			"status", rec.Status,
			"age_minutes", age,
		)
		c.printf("Sending warning email...\n")
		result.Delivered, result.Failed = c.dispatch(ctx, logger, rule.Name(), alert)
		switch {
		case result.Delivered == 0:
			result.Action = model.ActionUndelivered
			logger.Error("warning not delivered", "job", rule.Name(), "notifiers", len(c.notifiers))
		case result.Failed == 0:
			result.Action = model.ActionNotified
			c.printf("Warning email sent successfully\n")
		default:
			result.Action = model.ActionNotified
		}

		c.metrics.CheckDone(rule.Name(), string(result.Action))
		results = append(results, result)
	}

	return results, nil
}

// dispatch sends alert through every notifier and tallies the outcome.
func (c *Checker) dispatch(ctx context.Context, logger *slog.Logger, job string, alert alerts.Alert) (delivered, failed int) {
	for _, notifier := range c.notifiers {
		ref, err := notifier.Send(ctx, alert)
		c.metrics.Notified(job, notifier.Name(), err == nil)
		if err != nil {
			failed++
			logger.Error("failed to send warning",
				"job", job,
				"notifier", notifier.Name(),
				"error", err,
			)
			continue
		}
		delivered++
		if ref != "" {
			c.printf("Warning %s sent: %s\n", notifier.Name(), ref)
		}
		logger.Info("warning sent", "job", job, "notifier", notifier.Name(), "ref", ref)
	}
	return delivered, failed
}

func (c *Checker) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
