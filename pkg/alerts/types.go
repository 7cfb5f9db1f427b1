package alerts

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies which check produced an alert.
type Kind string

const (
	KindDelay  Kind = "delay"  // Status has not been refreshed for a while
	KindOutage Kind = "outage" // Fresh status reports the power is off
	KindTest   Kind = "test"   // Manual delivery check
)

// Alert is a rendered notification ready for delivery.
type Alert struct {
	Kind        Kind      `json:"kind"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"-"`
	Message     string    `json:"message"`
	Recipients  []string  `json:"-"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	AgeMinutes  float64   `json:"age_minutes"`
}

// Notifier delivers alerts to an external system.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers an alert and returns a provider reference when one exists.
	Send(ctx context.Context, alert Alert) (string, error)
}

// SendError is returned by notifiers when delivery fails.
type SendError struct {
	Notifier string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: send alert: %v", e.Notifier, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
