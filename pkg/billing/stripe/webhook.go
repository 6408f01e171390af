package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
	"github.com/sourcebox-llc/entitlements/pkg/billing/internal"
	"github.com/sourcebox-llc/entitlements/pkg/directory"
)

// handleWebhook processes one inbound Stripe webhook delivery.
//
// Only transport-layer integrity failures (bad payload, bad signature) are
// rejected with 400; Stripe keys its redelivery on the HTTP status, so every
// other outcome, including downstream directory failures, acknowledges with
// 200 and is surfaced via logs and metrics instead.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			internal.WriteError(w, http.StatusBadRequest, "Invalid payload")
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	// The envelope check runs on the raw, unmodified bytes; the same bytes
	// go into signature verification. Re-encoding before verification would
	// invalidate the signature. Bodies that are not an event envelope are a
	// payload problem, not a signature problem.
	var envelope struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Object != "event" {
		internal.WriteError(w, http.StatusBadRequest, "Invalid payload")
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		p.logger.Warn(billing.ErrInvalidWebhookPayload.Error(),
			billing.Field{Key: "remote_addr", Value: internal.ClientIP(r)},
		)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		internal.WriteError(w, http.StatusBadRequest, "Invalid signature")
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn(billing.ErrInvalidWebhookSignature.Error(),
			billing.Field{Key: "error", Value: err.Error()},
			billing.Field{Key: "remote_addr", Value: internal.ClientIP(r)},
		)
		return
	}

	eventType := string(event.Type)
	kind := classifyEvent(event.Type)

	if kind == EventUnhandled {
		p.logger.Debug("ignoring unhandled event type",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: eventType},
		)
		p.acknowledge(w)
		p.metrics.RecordWebhookEvent(providerName, eventType, "success")
		return
	}

	if p.alreadyProcessed(r.Context(), &event) {
		p.acknowledge(w)
		p.metrics.RecordWebhookEvent(providerName, eventType, "duplicate")
		return
	}

	status := "success"
	if err := p.processEvent(r.Context(), kind, &event); err != nil {
		// Downstream failure: logged inside processEvent with the customer
		// and operation attached. Still acknowledged.
		status = "error"
		p.metrics.RecordWebhookError(providerName, "processing_error")
	}

	p.acknowledge(w)
	p.metrics.RecordWebhookEvent(providerName, eventType, status)
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

func (p *Provider) acknowledge(w http.ResponseWriter) {
	_ = internal.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// alreadyProcessed records the event ID in the dedup store and reports
// whether this delivery is a repeat. Store errors never block processing.
func (p *Provider) alreadyProcessed(ctx context.Context, event *stripe.Event) bool {
	if p.events == nil || event.ID == "" {
		return false
	}

	seen, err := p.events.MarkProcessed(ctx, providerName, event.ID)
	if err != nil {
		p.logger.Warn("event dedup store unavailable, processing anyway",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "error", Value: err.Error()},
		)
		return false
	}
	if seen {
		p.logger.Info("duplicate webhook delivery acknowledged without reprocessing",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: string(event.Type)},
		)
	}
	return seen
}

// processEvent runs the classified event through identity resolution and
// entitlement reconciliation. A non-nil return means the event could not be
// fully applied; callers acknowledge regardless.
func (p *Provider) processEvent(ctx context.Context, kind EventKind, event *stripe.Event) error {
	details, err := parseEventDetails(kind, event)
	if err != nil {
		p.logger.Error("failed to parse event payload",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: string(event.Type)},
			billing.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	action, reason := p.decideAction(kind, details)
	if action == ActionNone {
		p.logEventFields(kind, details, reason)
		return nil
	}

	if details.Ref.Empty() {
		// An entitlement change must never be dispatched without a customer
		// id or email to key it on.
		p.logger.Error("event carries no customer id or email, dropping entitlement change",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: string(event.Type)},
			billing.Field{Key: "action", Value: action.String()},
		)
		return billing.ErrEntitlementApplyFailed
	}

	userID, err := p.resolveIdentity(ctx, details.Ref)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			p.logger.Error("no directory user matches event customer",
				billing.Field{Key: "event_id", Value: event.ID},
				billing.Field{Key: "event_type", Value: string(event.Type)},
				billing.Field{Key: "stripe_customer_id", Value: details.Ref.CustomerID},
				billing.Field{Key: "email", Value: details.Ref.Email},
			)
			return err
		}
		p.logger.Error("identity resolution failed, entitlement change not applied",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: string(event.Type)},
			billing.Field{Key: "stripe_customer_id", Value: details.Ref.CustomerID},
			billing.Field{Key: "email", Value: details.Ref.Email},
			billing.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	change := EntitlementChange{
		UserID:         userID,
		Action:         action,
		SubscriptionID: details.Ref.SubscriptionID,
	}

	if err := p.ApplyChange(ctx, change); err != nil {
		p.logger.Error("entitlement reconciliation failed",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "event_type", Value: string(event.Type)},
			billing.Field{Key: "user_id", Value: userID},
			billing.Field{Key: "action", Value: action.String()},
			billing.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	p.logger.Info("entitlement change applied",
		billing.Field{Key: "event_id", Value: event.ID},
		billing.Field{Key: "event_type", Value: string(event.Type)},
		billing.Field{Key: "user_id", Value: userID},
		billing.Field{Key: "action", Value: action.String()},
	)

	p.notifyCallback(ctx, event, change)
	return nil
}

// decideAction maps the event kind and payload state to an entitlement
// action. A zero action with a reason means the event is log-only.
func (p *Provider) decideAction(kind EventKind, details *eventDetails) (Action, string) {
	switch kind {
	case EventCheckoutCompleted:
		return ActionGrant, ""

	case EventPaymentSucceeded:
		// Covers renewal payments that never pass through checkout.
		return ActionGrant, ""

	case EventPaymentFailed:
		return ActionNone, "payment failed, entitlement unchanged until subscription cancels"

	case EventSubscriptionDeleted:
		if details.CancelAtPeriodEnd {
			// Removal happens when Stripe sends the definitive
			// deleted-immediately signal at period end.
			return ActionNone, "cancellation scheduled at period end, removal deferred"
		}
		return ActionRemove, ""

	case EventSubscriptionUpdated:
		switch details.SubscriptionStatus {
		case stripe.SubscriptionStatusActive:
			return ActionGrant, ""
		case stripe.SubscriptionStatusCanceled:
			return ActionRemove, ""
		case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
			return ActionNone, "subscription delinquent, entitlement unchanged"
		default:
			return ActionNone, "subscription status does not affect entitlement"
		}
	}

	return ActionNone, "no entitlement action for event kind"
}

func (p *Provider) logEventFields(kind EventKind, details *eventDetails, reason string) {
	p.logger.Warn(reason,
		billing.Field{Key: "event_kind", Value: kind.String()},
		billing.Field{Key: "stripe_customer_id", Value: details.Ref.CustomerID},
		billing.Field{Key: "email", Value: details.Ref.Email},
		billing.Field{Key: "subscription_status", Value: string(details.SubscriptionStatus)},
	)
}

func (p *Provider) notifyCallback(ctx context.Context, event *stripe.Event, change EntitlementChange) {
	if p.callback == nil {
		return
	}

	err := p.callback(ctx, billing.WebhookEvent{
		UserID:         change.UserID,
		Email:          change.Email,
		Action:         change.Action.String(),
		SubscriptionID: change.SubscriptionID,
		Provider:       providerName,
		EventType:      string(event.Type),
		EventTimestamp: time.Unix(event.Created, 0),
	})
	if err != nil {
		p.logger.Warn("webhook callback failed",
			billing.Field{Key: "event_id", Value: event.ID},
			billing.Field{Key: "error", Value: err.Error()},
		)
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
