package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

// SyncCustomer re-derives a user's premium entitlement from the customer's
// live subscription state. It is the recovery path for missed or mis-ordered
// webhook deliveries: grant when at least one active subscription exists,
// remove otherwise. Requires an API key.
func (p *Provider) SyncCustomer(ctx context.Context, userID, customerID string) error {
	if p.stripeClient == nil {
		return fmt.Errorf("stripe: sync customer: %w", billing.ErrProviderNotConfigured)
	}
	if userID == "" || customerID == "" {
		return fmt.Errorf("stripe: sync customer: user id and customer id are required")
	}

	start := time.Now()
	subscriptionID, active, err := p.activeSubscription(ctx, customerID)
	p.metrics.RecordAPICallDuration(providerName, "/subscriptions/list", time.Since(start))
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/subscriptions/list", "error")
		return fmt.Errorf("stripe: sync customer %s: %w", customerID, err)
	}
	p.metrics.RecordAPICall(providerName, "/subscriptions/list", "success")

	change := EntitlementChange{
		UserID: userID,
		Action: ActionRemove,
	}
	if active {
		change.Action = ActionGrant
		change.SubscriptionID = subscriptionID
	}

	p.logger.Info("syncing entitlement from subscription state",
		billing.Field{Key: "user_id", Value: userID},
		billing.Field{Key: "customer_id", Value: customerID},
		billing.Field{Key: "action", Value: change.Action.String()},
	)
	return p.ApplyChange(ctx, change)
}

// activeSubscription returns the most recently created active subscription
// for a customer, if any.
func (p *Provider) activeSubscription(ctx context.Context, customerID string) (string, bool, error) {
	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String(string(stripe.SubscriptionStatusActive))

	var (
		subscriptionID string
		latestCreated  int64
	)
	for sub, err := range p.stripeClient.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return "", false, fmt.Errorf("list subscriptions: %w", err)
		}
		if sub.Status != stripe.SubscriptionStatusActive {
			continue
		}
		if sub.Created >= latestCreated {
			subscriptionID = sub.ID
			latestCreated = sub.Created
		}
	}

	return subscriptionID, subscriptionID != "", nil
}
