package billing

import "time"

// Metrics defines the interface for tracking billing provider operations.
// All methods are optional - providers should gracefully handle nil metrics.
type Metrics interface {
	// RecordWebhookEvent records a webhook event received from the billing provider.
	// eventType: The provider event type (e.g., "checkout.session.completed")
	// status: "success", "warning", "duplicate" or "error"
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration records how long it took to process a webhook.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError records a webhook processing error.
	// errorType: The type of error (e.g., "auth_failed", "invalid_payload", "processing_error")
	RecordWebhookError(provider, errorType string)

	// RecordIdentityResolution records an identity resolution attempt.
	// path: the lookup key used ("customer_id" or "email")
	// status: "found", "not_found" or "error"
	RecordIdentityResolution(provider, path, status string)

	// RecordEntitlementOp records an entitlement sub-operation against the
	// user directory.
	// op: "grant", "remove", "store_customer_id" or "store_subscription_id"
	// status: "success" or "error"
	RecordEntitlementOp(provider, op, status string)

	// RecordAPICall records an outbound API call.
	// endpoint: The API endpoint called (e.g., "/users/search")
	// status: HTTP status code as string (e.g., "200", "404", "500")
	RecordAPICall(provider, endpoint, status string)

	// RecordAPICallDuration records how long an API call took.
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(_, _, _ string)                            {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(_, _ string, _ time.Duration) {}
func (n *NoopMetrics) RecordWebhookError(_, _ string)                               {}
func (n *NoopMetrics) RecordIdentityResolution(_, _, _ string)                      {}
func (n *NoopMetrics) RecordEntitlementOp(_, _, _ string)                           {}
func (n *NoopMetrics) RecordAPICall(_, _, _ string)                                 {}
func (n *NoopMetrics) RecordAPICallDuration(_, _ string, _ time.Duration)           {}
