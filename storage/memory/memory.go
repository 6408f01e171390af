// Package memory provides an in-memory implementation of the
// billing.EventStore interface. Dedup state is lost on restart, so a
// redelivered event may be reprocessed after a restart; the flow tolerates
// that because every entitlement operation is idempotent. Intended for
// single-instance deployments, development, and tests.
package memory

import (
	"context"
	"sync"
	"time"
)

const defaultRetention = 24 * time.Hour

// Store implements billing.EventStore using an in-memory map.
type Store struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

// New creates a new in-memory event store. Entries are kept for 24 hours,
// longer than Stripe's webhook retry horizon for a healthy endpoint.
func New() *Store {
	return NewWithRetention(defaultRetention)
}

// NewWithRetention creates a store with a custom retention window.
func NewWithRetention(retention time.Duration) *Store {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Store{
		seen:      make(map[string]time.Time),
		retention: retention,
	}
}

// MarkProcessed implements billing.EventStore.
func (s *Store) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key := provider + ":" + eventID
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prune expired entries while we hold the lock.
	for k, recordedAt := range s.seen {
		if now.Sub(recordedAt) > s.retention {
			delete(s.seen, k)
		}
	}

	if _, ok := s.seen[key]; ok {
		return true, nil
	}
	s.seen[key] = now
	return false, nil
}
