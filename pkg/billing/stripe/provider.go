// Package stripe processes Stripe webhook events and reconciles the premium
// entitlement on user-directory records. The flow per delivery is:
// verify the signature over the raw body, classify the event, resolve the
// Stripe customer to an internal user, then apply the entitlement change.
// Only signature and payload failures reject the delivery; downstream
// failures are logged and acknowledged so Stripe does not redeliver a
// request whose retry would be equally futile.
package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
	"github.com/sourcebox-llc/entitlements/pkg/billing/internal"
	"github.com/sourcebox-llc/entitlements/pkg/directory"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config // Base config (Directory, Events, Logger, Metrics)

	// StripeAPIKey authenticates outbound Stripe API calls (checkout
	// sessions, subscription cancellation). Optional: webhook processing
	// works without it since identity comes from the payload and the
	// directory, not from Stripe lookups.
	StripeAPIKey string

	// StripeWebhookSecret is the endpoint signing secret used to verify
	// inbound webhook deliveries (required).
	StripeWebhookSecret string
}

// Provider implements the billing.Provider interface for Stripe
type Provider struct {
	directory     directory.Service
	events        billing.EventStore
	webhookSecret []byte
	stripeClient  *stripe.Client
	rateLimiter   *internal.RateLimiter
	logger        billing.Logger
	metrics       billing.Metrics
	callback      func(ctx context.Context, event billing.WebhookEvent) error
}

// NewProvider creates a new Stripe billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Directory == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	webhookSecret := strings.TrimSpace(config.StripeWebhookSecret)
	if webhookSecret == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	// The Stripe client is only needed for outbound operations.
	var stripeClient *stripe.Client
	if apiKey := strings.TrimSpace(config.StripeAPIKey); apiKey != "" {
		stripeClient = stripe.NewClient(apiKey)
	}

	logger := config.Logger
	if logger == nil {
		logger = &billing.NoopLogger{}
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		directory:     config.Directory,
		events:        config.Events,
		webhookSecret: []byte(webhookSecret),
		stripeClient:  stripeClient,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		logger:        logger,
		metrics:       metrics,
		callback:      config.WebhookCallback,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}
