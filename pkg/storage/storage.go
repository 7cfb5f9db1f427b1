package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pmr-b5/powerwatch/pkg/model"
)

// ErrNotFound is returned when no status has been stored yet.
var ErrNotFound = errors.New("status not found")

// Storage persists the current electricity status. Only the latest
// value is kept.
type Storage interface {
	// GetStatus returns the current status or ErrNotFound.
	GetStatus(ctx context.Context) (*model.StatusRecord, error)

	// SetStatus overwrites the current status.
	SetStatus(ctx context.Context, status string, at time.Time) (*model.StatusRecord, error)

	// Close releases resources.
	Close() error
}
