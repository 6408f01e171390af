package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

// CheckoutURL creates a Stripe Checkout Session for the premium subscription
// and returns the hosted payment page URL. The session carries the internal
// user id and email so the completion webhook can resolve identity even
// before a customer-ID linkage exists.
func (p *Provider) CheckoutURL(ctx context.Context, userID, email, priceID, successURL, cancelURL string) (string, error) {
	startTime := time.Now()

	if p.stripeClient == nil {
		return "", billing.ErrProviderNotConfigured
	}
	if priceID == "" {
		return "", fmt.Errorf("price id is required")
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}

	// The webhook handler resolves identity from these fields.
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("user_id", userID)
	params.ClientReferenceID = stripe.String(userID)
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}

	session, err := p.stripeClient.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/checkout/sessions", "error")
		p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.metrics.RecordAPICall(providerName, "/checkout/sessions", "success")
	p.metrics.RecordAPICallDuration(providerName, "/checkout/sessions", time.Since(startTime))

	return session.URL, nil
}

// ScheduleCancellation flags the subscription to cancel at the end of the
// current billing period. Premium is deliberately NOT removed here: removal
// waits for the definitive customer.subscription.deleted webhook.
func (p *Provider) ScheduleCancellation(ctx context.Context, subscriptionID string) error {
	startTime := time.Now()

	if p.stripeClient == nil {
		return billing.ErrProviderNotConfigured
	}
	if subscriptionID == "" {
		return fmt.Errorf("subscription id is required")
	}

	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}

	_, err := p.stripeClient.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		p.metrics.RecordAPICall(providerName, "/subscriptions/update", "error")
		p.metrics.RecordAPICallDuration(providerName, "/subscriptions/update", time.Since(startTime))
		return fmt.Errorf("failed to schedule cancellation for %s: %w", subscriptionID, err)
	}

	p.metrics.RecordAPICall(providerName, "/subscriptions/update", "success")
	p.metrics.RecordAPICallDuration(providerName, "/subscriptions/update", time.Since(startTime))

	p.logger.Info("subscription set to cancel at period end",
		billing.Field{Key: "stripe_subscription_id", Value: subscriptionID},
	)
	return nil
}
