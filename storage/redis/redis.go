// Package redis provides a Redis implementation of the billing.EventStore
// interface. SET NX gives an atomic record-and-check, so concurrent
// deliveries of the same event across replicas agree on a single winner.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements billing.EventStore using Redis
type Store struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis event store configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "entitlements:")
	KeyPrefix string

	// EventTTL bounds how long processed event IDs are remembered
	// (default: 72h, beyond Stripe's retry horizon)
	EventTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "entitlements:",
		EventTTL:  72 * time.Hour,
	}
}

// New creates a new Redis event store
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "entitlements:"
	}
	if config.EventTTL <= 0 {
		config.EventTTL = 72 * time.Hour
	}

	return &Store{
		client: client,
		config: config,
	}, nil
}

// MarkProcessed implements billing.EventStore.
func (s *Store) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key := fmt.Sprintf("%sevents:%s:%s", s.config.KeyPrefix, provider, eventID)

	stored, err := s.client.SetNX(ctx, key, 1, s.config.EventTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event id: %w", err)
	}

	// SetNX reports true when the key was newly set, i.e. first delivery.
	return !stored, nil
}
