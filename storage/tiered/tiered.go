// Package tiered provides a layered billing.EventStore that fronts a durable
// shared store (Redis, Postgres) with a fast local one. The local layer
// answers repeat deliveries to the same instance without a network round
// trip; the shared layer stays the source of truth across replicas.
package tiered

import (
	"context"
	"errors"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

// Config configures the tiered event store
type Config struct {
	// Local is the per-instance layer (e.g. memory) consulted first
	Local billing.EventStore

	// Shared is the cross-replica source of truth (e.g. Redis, Postgres)
	Shared billing.EventStore

	// FailOpen falls back to the local answer when the shared store is
	// unreachable instead of returning the error. The webhook flow treats
	// store errors as first deliveries, so this only changes who reports
	// the degradation.
	FailOpen bool
}

// Store implements billing.EventStore over a local and a shared layer.
type Store struct {
	local    billing.EventStore
	shared   billing.EventStore
	failOpen bool
}

// New creates a tiered event store.
func New(config Config) (*Store, error) {
	if config.Local == nil || config.Shared == nil {
		return nil, errors.New("tiered event store: both local and shared stores are required")
	}
	return &Store{
		local:    config.Local,
		shared:   config.Shared,
		failOpen: config.FailOpen,
	}, nil
}

// MarkProcessed implements billing.EventStore.
//
// The local layer is recorded unconditionally so the instance remembers the
// event even when the shared store is down. The shared answer wins when both
// layers respond: a delivery first seen by another replica is still a
// duplicate here.
func (s *Store) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	localSeen, localErr := s.local.MarkProcessed(ctx, provider, eventID)

	sharedSeen, sharedErr := s.shared.MarkProcessed(ctx, provider, eventID)
	if sharedErr != nil {
		if s.failOpen && localErr == nil {
			return localSeen, nil
		}
		return false, sharedErr
	}

	return sharedSeen || (localErr == nil && localSeen), nil
}
