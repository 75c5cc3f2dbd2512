package eventstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory, for tests and short-lived
// CLI runs.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	events []Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append adds a new event to the store.
func (m *MemoryStore) Append(_ context.Context, runID, eventType string, payload []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var meta map[string]string
	if metadata != nil {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	m.events = append(m.events, Event{
		ID:        m.nextID,
		RunID:     runID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   append([]byte(nil), payload...),
		Metadata:  meta,
	})
	m.nextID++
	return nil
}

// ByRunID retrieves all events for a conversion run, in append order.
func (m *MemoryStore) ByRunID(_ context.Context, runID string) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Event
	for _, e := range m.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
