package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is missing required configuration
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when a webhook body is not a well-formed event envelope
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrIdentityLookupFailed is returned when the user directory cannot be reached
	// or answers with an unexpected error during identity resolution
	ErrIdentityLookupFailed = errors.New("identity lookup failed")

	// ErrEntitlementApplyFailed is returned when one or more entitlement
	// sub-operations against the user directory fail
	ErrEntitlementApplyFailed = errors.New("entitlement apply failed")
)
