package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

// EventKind is the closed set of entitlement-affecting webhook event kinds.
// Anything Stripe sends outside this set classifies as EventUnhandled and is
// acknowledged without processing.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventCheckoutCompleted
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventPaymentFailed
	EventPaymentSucceeded
)

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventSubscriptionUpdated:
		return "subscription_updated"
	case EventSubscriptionDeleted:
		return "subscription_deleted"
	case EventPaymentFailed:
		return "payment_failed"
	case EventPaymentSucceeded:
		return "payment_succeeded"
	default:
		return "unhandled"
	}
}

// classifyEvent maps a Stripe event type to an EventKind.
func classifyEvent(eventType stripe.EventType) EventKind {
	switch eventType {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	case "invoice.payment_failed":
		return EventPaymentFailed
	case "invoice.payment_succeeded":
		return EventPaymentSucceeded
	default:
		return EventUnhandled
	}
}

// CustomerRef carries the payment-provider identifiers extracted from an
// event payload. At least one of CustomerID and Email must be present for
// an entitlement change to be dispatched.
type CustomerRef struct {
	CustomerID     string
	Email          string
	SubscriptionID string
}

// Empty reports whether the reference carries no identifying field.
func (r CustomerRef) Empty() bool {
	return r.CustomerID == "" && r.Email == ""
}

// eventDetails is the typed view of an event payload produced by the strict
// parse at the boundary. Absent fields are zero values; the controller
// decides what absence means per event kind.
type eventDetails struct {
	Ref                CustomerRef
	SubscriptionStatus stripe.SubscriptionStatus
	CancelAtPeriodEnd  bool
}

// parseEventDetails unmarshals event.Data.Raw into the typed object for the
// given kind and extracts the customer reference.
func parseEventDetails(kind EventKind, event *stripe.Event) (*eventDetails, error) {
	switch kind {
	case EventCheckoutCompleted:
		return parseCheckoutSession(event)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return parseSubscription(event)
	case EventPaymentFailed, EventPaymentSucceeded:
		return parseInvoice(event)
	default:
		return nil, fmt.Errorf("no payload model for event kind %s", kind)
	}
}

func parseCheckoutSession(event *stripe.Event) (*eventDetails, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}

	details := &eventDetails{}
	if session.Customer != nil {
		details.Ref.CustomerID = session.Customer.ID
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		details.Ref.Email = session.CustomerDetails.Email
	} else {
		details.Ref.Email = session.CustomerEmail
	}
	if session.Subscription != nil {
		details.Ref.SubscriptionID = session.Subscription.ID
	}
	return details, nil
}

func parseSubscription(event *stripe.Event) (*eventDetails, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription: %w", err)
	}

	details := &eventDetails{
		SubscriptionStatus: sub.Status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		details.Ref.CustomerID = sub.Customer.ID
	}
	details.Ref.SubscriptionID = sub.ID
	return details, nil
}

func parseInvoice(event *stripe.Event) (*eventDetails, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, fmt.Errorf("unmarshal invoice: %w", err)
	}

	details := &eventDetails{}
	details.Ref.Email = invoice.CustomerEmail

	// The invoice struct does not expose customer and subscription as plain
	// IDs in every API version; both arrive either as an ID string or as an
	// expanded object, so read them from the raw payload.
	var raw map[string]interface{}
	if err := json.Unmarshal(event.Data.Raw, &raw); err == nil {
		details.Ref.CustomerID = rawID(raw["customer"])
		details.Ref.SubscriptionID = rawID(raw["subscription"])
	}
	return details, nil
}

// rawID extracts a Stripe object ID from a field that is either an ID
// string or an expanded object.
func rawID(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case map[string]interface{}:
		if id, ok := value["id"].(string); ok {
			return id
		}
	}
	return ""
}
