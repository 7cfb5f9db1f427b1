package monitor

import (
	"time"

	"github.com/pmr-b5/powerwatch/pkg/alerts"
	"github.com/pmr-b5/powerwatch/pkg/model"
)

// Default rule bounds.
const (
	DefaultDelayMinAge  = 10 * time.Minute
	DefaultDelayMaxAge  = 90 * time.Minute
	DefaultOutageMaxAge = 10 * time.Minute
)

// Rule decides whether a status record warrants an alert and renders it.
type Rule interface {
	// Name identifies the job the rule belongs to.
	Name() string

	// ShouldAlert reports whether rec, observed ageMinutes after its
	// last update, must be notified.
	ShouldAlert(rec model.StatusRecord, ageMinutes float64) bool

	// Alert renders the notification for rec.
	Alert(rec model.StatusRecord, ageMinutes float64) (alerts.Alert, error)

	// QuietMessage is printed when no alert is sent.
	QuietMessage(rec model.StatusRecord) string
}

// DelayRule fires while the status is stale but still inside the
// staleness window: MinAge < age < MaxAge. Both bounds are exclusive.
type DelayRule struct {
	MinAge     time.Duration
	MaxAge     time.Duration
	Recipients []string
	Location   *time.Location
}

// NewDelayRule returns a DelayRule with the default 10-90 minute window.
func NewDelayRule(recipients []string, loc *time.Location) *DelayRule {
	return &DelayRule{
		MinAge:     DefaultDelayMinAge,
		MaxAge:     DefaultDelayMaxAge,
		Recipients: recipients,
		Location:   loc,
	}
}

func (r *DelayRule) Name() string { return string(alerts.KindDelay) }

func (r *DelayRule) ShouldAlert(_ model.StatusRecord, ageMinutes float64) bool {
	return ageMinutes > r.MinAge.Minutes() && ageMinutes < r.MaxAge.Minutes()
}

func (r *DelayRule) Alert(rec model.StatusRecord, ageMinutes float64) (alerts.Alert, error) {
	return alerts.DelayAlert(rec.Status, rec.LastUpdated, ageMinutes, location(r.Location), r.Recipients)
}

func (r *DelayRule) QuietMessage(model.StatusRecord) string {
	return "No action needed"
}

// OutageRule fires when a fresh record (age < MaxAge) reports the power off.
type OutageRule struct {
	MaxAge     time.Duration
	Recipients []string
	Location   *time.Location
}

// NewOutageRule returns an OutageRule with the default 10 minute bound.
func NewOutageRule(recipients []string, loc *time.Location) *OutageRule {
	return &OutageRule{
		MaxAge:     DefaultOutageMaxAge,
		Recipients: recipients,
		Location:   loc,
	}
}

func (r *OutageRule) Name() string { return string(alerts.KindOutage) }

func (r *OutageRule) ShouldAlert(rec model.StatusRecord, ageMinutes float64) bool {
	return ageMinutes < r.MaxAge.Minutes() && !rec.IsOn
}

func (r *OutageRule) Alert(rec model.StatusRecord, ageMinutes float64) (alerts.Alert, error) {
	return alerts.OutageAlert(rec.Status, rec.LastUpdated, ageMinutes, location(r.Location), r.Recipients)
}

func (r *OutageRule) QuietMessage(rec model.StatusRecord) string {
	if rec.IsOn {
		return "Electricity is UP. No action needed"
	}
	return "Status is not fresh enough to report an outage. No action needed"
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
