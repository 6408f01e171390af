package billing

import "net/http"

// Provider is the generic interface that any billing backend must implement.
// This keeps the webhook endpoint wiring independent of the payment vendor.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time events.
	// The implementation handles signature verification, parsing, and
	// entitlement reconciliation internally.
	WebhookHandler() http.Handler
}
