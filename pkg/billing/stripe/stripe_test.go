package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
	"github.com/sourcebox-llc/entitlements/pkg/directory"
)

var errFakeOutage = errors.New("directory unreachable")

const (
	testWebhookSecret = "whsec_test_secret"
	testUserID        = "42"
	testCustomerID    = "cus_test123"
	testEmail         = "a@x.com"
	testSubID         = "sub_test123"
)

// fakeDirectory implements directory.Service in memory and records every
// write operation for assertions.
type fakeDirectory struct {
	mu                sync.Mutex
	usersByCustomerID map[string]string
	usersByEmail      map[string]string

	lookupErr error // injected transport failure for lookups
	grantErr  error // injected failure for grant operations

	calls []string
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		usersByCustomerID: make(map[string]string),
		usersByEmail:      make(map[string]string),
	}
}

func (f *fakeDirectory) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDirectory) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDirectory) hasCall(call string) bool {
	for _, c := range f.callList() {
		if c == call {
			return true
		}
	}
	return false
}

// entitlementCalls returns only the side-effecting operations, excluding
// lookups.
func (f *fakeDirectory) entitlementCalls() []string {
	var out []string
	for _, c := range f.callList() {
		if !strings.HasPrefix(c, "find_") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDirectory) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	f.record("find_by_customer_id:" + customerID)
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	if id, ok := f.usersByCustomerID[customerID]; ok {
		return id, nil
	}
	return "", directory.ErrUserNotFound
}

func (f *fakeDirectory) FindByEmail(ctx context.Context, email string) (string, error) {
	f.record("find_by_email:" + email)
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	if id, ok := f.usersByEmail[email]; ok {
		return id, nil
	}
	return "", directory.ErrUserNotFound
}

func (f *fakeDirectory) GrantPremium(ctx context.Context, userID string) error {
	f.record("grant:" + userID)
	return f.grantErr
}

func (f *fakeDirectory) RemovePremium(ctx context.Context, userID string) error {
	f.record("remove:" + userID)
	return nil
}

func (f *fakeDirectory) StoreCustomerID(ctx context.Context, userID, customerID string) error {
	f.record("store_customer_id:" + userID + ":" + customerID)
	return nil
}

func (f *fakeDirectory) StoreSubscriptionID(ctx context.Context, userID, subscriptionID string) error {
	f.record("store_subscription_id:" + userID + ":" + subscriptionID)
	return nil
}

func (f *fakeDirectory) GrantPremiumByEmail(ctx context.Context, email string) error {
	f.record("grant_by_email:" + email)
	return f.grantErr
}

func (f *fakeDirectory) RemovePremiumByEmail(ctx context.Context, email string) error {
	f.record("remove_by_email:" + email)
	return nil
}

func (f *fakeDirectory) StoreSubscriptionIDByEmail(ctx context.Context, email, subscriptionID string) error {
	f.record("store_subscription_id_by_email:" + email + ":" + subscriptionID)
	return nil
}

func newTestProvider(t *testing.T, dir directory.Service, events billing.EventStore) *Provider {
	t.Helper()
	provider, err := NewProvider(Config{
		Config: billing.Config{
			Directory: dir,
			Events:    events,
		},
		StripeWebhookSecret: testWebhookSecret,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

// eventPayload builds a webhook event envelope the way Stripe delivers it:
// identifiers in the inner object are plain ID strings, not expanded objects.
func eventPayload(t *testing.T, eventID, eventType string, object map[string]interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data": map[string]interface{}{
			"object": object,
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal event payload: %v", err)
	}
	return body
}

// signPayload computes a Stripe-Signature header value over the raw payload.
func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func deliver(t *testing.T, provider *Provider, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)
	return rec
}

func deliverSigned(t *testing.T, provider *Provider, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	return deliver(t, provider, payload, signPayload(t, payload, testWebhookSecret))
}

func assertAcknowledged(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	if resp["status"] != "success" {
		t.Errorf("Expected body status %q, got %q", "success", resp["status"])
	}
}

func assertRejected(t *testing.T, rec *httptest.ResponseRecorder, wantError string) {
	t.Helper()
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	if resp["error"] != wantError {
		t.Errorf("Expected error %q, got %q", wantError, resp["error"])
	}
}
