package billing

import "context"

// EventStore records webhook event IDs that have already been processed.
// Providers deliver events at least once; the store lets the flow
// acknowledge a redelivery without re-issuing side-effecting calls.
type EventStore interface {
	// MarkProcessed records the event ID and reports whether it had
	// already been recorded. Implementations must be safe for concurrent
	// use and may expire entries after the provider's redelivery horizon.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}
