package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

// Billing is the set of outbound subscription operations the API exposes.
// *stripe.Provider satisfies it.
type Billing interface {
	CheckoutURL(ctx context.Context, userID, email, priceID, successURL, cancelURL string) (string, error)
	ScheduleCancellation(ctx context.Context, subscriptionID string) error
	SyncCustomer(ctx context.Context, userID, customerID string) error
}

// Config holds configuration for the billing API handler
type Config struct {
	// Billing is the payment provider instance (required)
	Billing Billing

	// GetUserID extracts the authenticated user ID from the HTTP request
	// (required). The API never trusts identifiers from the request body.
	GetUserID func(*http.Request) string

	// OnError handles errors (auth, internal, etc.)
	// If nil, uses default error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional; defaults to a no-op logger
	Logger billing.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Billing == nil {
		return fmt.Errorf("billing provider is required")
	}
	if c.GetUserID == nil {
		return fmt.Errorf("getUserID is required")
	}
	return nil
}

// NewHandler creates a new billing API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &billing.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}

// Helper functions for common UserID extraction patterns

// FromHeader returns a GetUserID function that extracts user ID from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetUserID function that extracts user ID from request context
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}
