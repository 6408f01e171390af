// Package directory is the client for the internal user-directory API.
// The directory owns user records and the premium entitlement flag; this
// package only speaks its HTTP surface.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no user record matches the lookup key.
	ErrUserNotFound = errors.New("user not found in directory")

	// ErrUnavailable is returned on transport failures or unexpected
	// responses from the directory API.
	ErrUnavailable = errors.New("user directory unavailable")
)

// Service is the user-directory surface the entitlement flow depends on.
// Every operation is a single idempotent remote call; the directory
// serializes writes per user record.
type Service interface {
	// FindByCustomerID looks up a user by their stored Stripe customer ID.
	FindByCustomerID(ctx context.Context, customerID string) (string, error)

	// FindByEmail looks up a user by email address.
	FindByEmail(ctx context.Context, email string) (string, error)

	// GrantPremium sets the premium flag on the user record.
	GrantPremium(ctx context.Context, userID string) error

	// RemovePremium clears the premium flag on the user record.
	RemovePremium(ctx context.Context, userID string) error

	// StoreCustomerID persists the Stripe customer linkage so future
	// lookups resolve by customer ID in one step.
	StoreCustomerID(ctx context.Context, userID, customerID string) error

	// StoreSubscriptionID persists the active Stripe subscription ID.
	StoreSubscriptionID(ctx context.Context, userID, subscriptionID string) error

	// Email-keyed variants of the write operations, for callers that hold
	// only an email address.
	GrantPremiumByEmail(ctx context.Context, email string) error
	RemovePremiumByEmail(ctx context.Context, email string) error
	StoreSubscriptionIDByEmail(ctx context.Context, email, subscriptionID string) error
}
