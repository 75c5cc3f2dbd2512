// Package eventstore records conversion runs and hydration state transitions
// in an append-only log, backed by memory or SQLite.
package eventstore

import (
	"context"
	"time"
)

// Event types recorded by the converter and scheduler.
const (
	TypeConversionStarted   = "conversion.started"
	TypeConversionCompleted = "conversion.completed"
	TypeOptimizeCompleted   = "optimize.completed"
	TypeHydrationTransition = "hydration.transition"
)

// Event is one append-only log record, keyed by the conversion run it
// belongs to.
type Event struct {
	ID        int64             `json:"id"`
	RunID     string            `json:"run_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store is an append-only event log.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
	// ByRunID retrieves all events for a conversion run, in append order.
	ByRunID(ctx context.Context, runID string) ([]Event, error)
	// Close releases the store's resources.
	Close() error
}
