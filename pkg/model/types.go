package model

import (
	"errors"
	"fmt"
	"time"
)

// Reported electricity states.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// StatusPayload is the wire form served by the electricity-status API.
type StatusPayload struct {
	Status      string `json:"status"`
	LastUpdated string `json:"lastUpdated"`
}

// StatusRecord is a parsed status snapshot. It lives for a single run.
type StatusRecord struct {
	Status      string    `json:"status"`
	IsOn        bool      `json:"is_on"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewStatusRecord builds a record from a reported status and its update time.
func NewStatusRecord(status string, lastUpdated time.Time) StatusRecord {
	return StatusRecord{
		Status:      status,
		IsOn:        status == StatusUp,
		LastUpdated: lastUpdated.UTC(),
	}
}

// Payload converts the record back to its wire form.
func (r StatusRecord) Payload() StatusPayload {
	return StatusPayload{
		Status:      r.Status,
		LastUpdated: FormatTimestamp(r.LastUpdated),
	}
}

// AgeMinutes returns the minutes elapsed between the last update and now.
// The result is negative when the record claims to come from the future.
func (r StatusRecord) AgeMinutes(now time.Time) float64 {
	return now.UTC().Sub(r.LastUpdated).Minutes()
}

// ParseTimestamp parses an ISO-8601 timestamp that carries a zone designator
// ("Z" or an explicit offset). Naive timestamps are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatTimestamp renders t the way JavaScript's toISOString does.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Action is the outcome of evaluating a rule.
type Action string

const (
	ActionNone        Action = "none"
	ActionNotified    Action = "notified"
	ActionUndelivered Action = "undelivered" // Alert fired, no notifier delivered it
)

// CheckResult summarizes one job run.
type CheckResult struct {
	RunID       string    `json:"run_id"`
	Job         string    `json:"job"`
	Action      Action    `json:"action"`
	AgeMinutes  float64   `json:"age_minutes"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	Delivered   int       `json:"delivered"`
	Failed      int       `json:"failed"`
}
