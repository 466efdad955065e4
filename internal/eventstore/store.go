// Package eventstore persists run lifecycle events and projects them into a run history.
package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves events.
type Store interface {
	// Append adds an event that occurred at ts.
	Append(ctx context.Context, runID, eventType string, ts time.Time, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events of one run in append order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range, inclusive.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	Close() error
}
