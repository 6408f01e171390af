package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
	"github.com/sourcebox-llc/entitlements/pkg/directory"
)

// resolveIdentity maps a customer reference to an internal user ID.
//
// Lookup order is customer ID first, then email. The email fallback exists
// because a user's first successful checkout may predate any stored
// customer-ID linkage. When the email path hits and the event carried a
// customer ID, the linkage is persisted so the next event resolves in one
// step; a failure to persist it is logged and does not fail resolution.
//
// Returns directory.ErrUserNotFound when every available key misses, and a
// billing.ErrIdentityLookupFailed wrap on directory transport errors.
func (p *Provider) resolveIdentity(ctx context.Context, ref CustomerRef) (string, error) {
	if ref.CustomerID != "" {
		userID, err := p.directory.FindByCustomerID(ctx, ref.CustomerID)
		switch {
		case err == nil:
			p.metrics.RecordIdentityResolution(providerName, "customer_id", "found")
			return userID, nil
		case errors.Is(err, directory.ErrUserNotFound):
			p.metrics.RecordIdentityResolution(providerName, "customer_id", "not_found")
		default:
			p.metrics.RecordIdentityResolution(providerName, "customer_id", "error")
			return "", fmt.Errorf("%w: lookup by customer id %s: %v", billing.ErrIdentityLookupFailed, ref.CustomerID, err)
		}
	}

	if ref.Email != "" {
		userID, err := p.directory.FindByEmail(ctx, ref.Email)
		switch {
		case err == nil:
			p.metrics.RecordIdentityResolution(providerName, "email", "found")
			if ref.CustomerID != "" {
				p.storeCustomerLink(ctx, userID, ref.CustomerID)
			}
			return userID, nil
		case errors.Is(err, directory.ErrUserNotFound):
			p.metrics.RecordIdentityResolution(providerName, "email", "not_found")
		default:
			p.metrics.RecordIdentityResolution(providerName, "email", "error")
			return "", fmt.Errorf("%w: lookup by email %s: %v", billing.ErrIdentityLookupFailed, ref.Email, err)
		}
	}

	return "", directory.ErrUserNotFound
}

// storeCustomerLink persists a newly discovered customer-ID linkage,
// best effort.
func (p *Provider) storeCustomerLink(ctx context.Context, userID, customerID string) {
	if err := p.directory.StoreCustomerID(ctx, userID, customerID); err != nil {
		p.metrics.RecordEntitlementOp(providerName, "store_customer_id", "error")
		p.logger.Warn("failed to store customer id linkage",
			billing.Field{Key: "user_id", Value: userID},
			billing.Field{Key: "stripe_customer_id", Value: customerID},
			billing.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	p.metrics.RecordEntitlementOp(providerName, "store_customer_id", "success")
}
