// Package postgres provides a PostgreSQL implementation of the
// billing.EventStore interface. INSERT ... ON CONFLICT DO NOTHING gives an
// atomic record-and-check, so concurrent deliveries of the same event across
// replicas agree on a single winner. Processed event IDs are pruned by a
// background cleanup worker.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the table the store operates on. Apply it once per database.
const Schema = `
CREATE TABLE IF NOT EXISTS processed_events (
	provider     TEXT        NOT NULL,
	event_id     TEXT        NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (provider, event_id)
);
`

// Store implements billing.EventStore using PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	config Config

	// stopCleanup cancels the background cleanup goroutine
	stopCleanup func()
}

// Config holds PostgreSQL event store configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Cleanup configuration
	CleanupEnabled  bool
	CleanupInterval time.Duration // How often to run cleanup
	EventTTL        time.Duration // How long processed event IDs are remembered
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		CleanupEnabled:  true,
		CleanupInterval: 1 * time.Hour,
		EventTTL:        72 * time.Hour, // beyond Stripe's retry horizon
	}
}

// New creates a new PostgreSQL event store
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if config.EventTTL <= 0 {
		config.EventTTL = 72 * time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 1 * time.Hour
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())

	s := &Store{
		pool:        pool,
		config:      config,
		stopCleanup: cancel,
	}

	if config.CleanupEnabled {
		go s.startCleanup(cleanupCtx)
	}

	return s, nil
}

// EnsureSchema creates the processed_events table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// MarkProcessed implements billing.EventStore.
func (s *Store) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO processed_events (provider, event_id) VALUES ($1, $2)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record event id: %w", err)
	}

	// Zero rows affected means the row already existed, i.e. a redelivery.
	return tag.RowsAffected() == 0, nil
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close stops the cleanup worker and releases the connection pool
func (s *Store) Close() {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	s.pool.Close()
}

func (s *Store) startCleanup(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.cleanupExpiredEvents(ctx)
		}
	}
}

func (s *Store) cleanupExpiredEvents(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE processed_at < $1`,
		time.Now().Add(-s.config.EventTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to clean up expired events: %w", err)
	}
	return nil
}

// Cleanup removes expired event records immediately
func (s *Store) Cleanup(ctx context.Context) error {
	return s.cleanupExpiredEvents(ctx)
}
