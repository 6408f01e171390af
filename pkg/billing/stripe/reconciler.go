package stripe

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

// Action is the entitlement mutation carried by an EntitlementChange.
type Action int

const (
	ActionNone Action = iota
	ActionGrant
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionGrant:
		return "grant"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// EntitlementChange is the command applied against the user directory for
// one event. Exactly one of UserID and Email keys the change; UserID wins
// when both are set. The change is created per event, applied once, and
// discarded.
type EntitlementChange struct {
	UserID         string
	Email          string
	Action         Action
	SubscriptionID string
}

// ApplyChange dispatches the entitlement change to the user directory.
//
// The premium flag update and the subscription-ID store are independent
// sub-operations: each is attempted even if the other fails, and failures
// are collected rather than short-circuited. The returned error wraps
// billing.ErrEntitlementApplyFailed when any sub-operation failed.
func (p *Provider) ApplyChange(ctx context.Context, change EntitlementChange) error {
	if change.UserID == "" && change.Email == "" {
		return fmt.Errorf("%w: change carries neither user id nor email", billing.ErrEntitlementApplyFailed)
	}

	var result *multierror.Error

	if change.UserID != "" {
		result = multierror.Append(result, p.applyByUserID(ctx, change))
	} else {
		result = multierror.Append(result, p.applyByEmail(ctx, change))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrEntitlementApplyFailed, err)
	}
	return nil
}

func (p *Provider) applyByUserID(ctx context.Context, change EntitlementChange) error {
	var result *multierror.Error

	switch change.Action {
	case ActionGrant:
		if err := p.directory.GrantPremium(ctx, change.UserID); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "grant", "error")
			result = multierror.Append(result, fmt.Errorf("grant premium for user %s: %w", change.UserID, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "grant", "success")
		}
	case ActionRemove:
		if err := p.directory.RemovePremium(ctx, change.UserID); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "remove", "error")
			result = multierror.Append(result, fmt.Errorf("remove premium for user %s: %w", change.UserID, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "remove", "success")
		}
	}

	if change.Action == ActionGrant && change.SubscriptionID != "" {
		if err := p.directory.StoreSubscriptionID(ctx, change.UserID, change.SubscriptionID); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "store_subscription_id", "error")
			result = multierror.Append(result, fmt.Errorf("store subscription id for user %s: %w", change.UserID, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "store_subscription_id", "success")
		}
	}

	return result.ErrorOrNil()
}

func (p *Provider) applyByEmail(ctx context.Context, change EntitlementChange) error {
	var result *multierror.Error

	switch change.Action {
	case ActionGrant:
		if err := p.directory.GrantPremiumByEmail(ctx, change.Email); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "grant", "error")
			result = multierror.Append(result, fmt.Errorf("grant premium for email %s: %w", change.Email, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "grant", "success")
		}
	case ActionRemove:
		if err := p.directory.RemovePremiumByEmail(ctx, change.Email); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "remove", "error")
			result = multierror.Append(result, fmt.Errorf("remove premium for email %s: %w", change.Email, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "remove", "success")
		}
	}

	if change.Action == ActionGrant && change.SubscriptionID != "" {
		if err := p.directory.StoreSubscriptionIDByEmail(ctx, change.Email, change.SubscriptionID); err != nil {
			p.metrics.RecordEntitlementOp(providerName, "store_subscription_id", "error")
			result = multierror.Append(result, fmt.Errorf("store subscription id for email %s: %w", change.Email, err))
		} else {
			p.metrics.RecordEntitlementOp(providerName, "store_subscription_id", "success")
		}
	}

	return result.ErrorOrNil()
}
