package billing

import "time"

// WebhookEvent describes a successfully applied entitlement change. It is
// passed to the WebhookCallback after the user directory has been updated.
type WebhookEvent struct {
	// UserID is the internal user identifier (empty for email-keyed changes)
	UserID string

	// Email is the customer email, when the change was keyed by email
	Email string

	// Action is "grant" or "remove"
	Action string

	// SubscriptionID is the Stripe subscription ID, if one was stored
	SubscriptionID string

	// Provider is the billing provider name ("stripe")
	Provider string

	// EventType is the provider-specific event type
	// (e.g., "checkout.session.completed", "customer.subscription.deleted")
	EventType string

	// EventTimestamp is when the event occurred (from provider)
	EventTimestamp time.Time
}
