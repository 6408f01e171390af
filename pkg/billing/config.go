package billing

import (
	"context"

	"github.com/sourcebox-llc/entitlements/pkg/directory"
)

// Config defines the standard configuration all providers should accept
type Config struct {
	// Directory is the user-directory collaborator that owns user records
	// and the premium entitlement flag (required).
	Directory directory.Service

	// Events is an optional processed-event store used to suppress
	// duplicate webhook deliveries. If nil, the flow relies solely on the
	// directory's idempotent write semantics.
	Events EventStore

	// Logger receives structured logs for every downstream failure.
	// If nil, logging is silently ignored (no-op).
	Logger Logger

	// Metrics is an optional metrics collector for webhook and directory
	// operations. If nil, metrics are silently ignored (no-op).
	// Use billing/metrics/prometheus.NewMetrics for Prometheus metrics.
	Metrics Metrics

	// WebhookCallback, if set, is invoked after an entitlement change has
	// been applied. Callback errors are logged, never surfaced to the
	// payment provider.
	WebhookCallback func(ctx context.Context, event WebhookEvent) error
}
