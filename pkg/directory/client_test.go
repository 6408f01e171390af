package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]string
	auth   string
}

// newRecordingServer returns a directory API stub that answers with the
// given status and body, and records the last request it served.
func newRecordingServer(t *testing.T, status int, respBody interface{}) (*httptest.Server, *recordedRequest) {
	t.Helper()
	last := &recordedRequest{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.method = r.Method
		last.path = r.URL.Path
		last.query = map[string]string{}
		for key := range r.URL.Query() {
			last.query[key] = r.URL.Query().Get(key)
		}
		last.auth = r.Header.Get("Authorization")
		last.body = nil
		if r.Body != nil {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				last.body = body
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if respBody != nil {
			require.NoError(t, json.NewEncoder(w).Encode(respBody))
		}
	}))
	t.Cleanup(server.Close)
	return server, last
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:   baseURL,
		AuthToken: "test-token",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "   "})
	assert.Error(t, err)
}

func TestFindByCustomerID(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, map[string]string{"id": "42"})
	client := newTestClient(t, server.URL)

	id, err := client.FindByCustomerID(context.Background(), "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, http.MethodGet, last.method)
	assert.Equal(t, "/users/search", last.path)
	assert.Equal(t, "cus_123", last.query["stripe_customer_id"])
	assert.Equal(t, "Bearer test-token", last.auth)
}

func TestFindByEmail(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, map[string]string{"id": "42"})
	client := newTestClient(t, server.URL)

	id, err := client.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "a@x.com", last.query["email"])
}

func TestSearch_NotFound(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusNotFound, nil)
	client := newTestClient(t, server.URL)

	_, err := client.FindByCustomerID(context.Background(), "cus_missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearch_ServerError(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusInternalServerError, nil)
	client := newTestClient(t, server.URL)

	_, err := client.FindByCustomerID(context.Background(), "cus_123")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearch_EmptyUserID(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusOK, map[string]string{})
	client := newTestClient(t, server.URL)

	_, err := client.FindByCustomerID(context.Background(), "cus_123")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGrantPremium(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.GrantPremium(context.Background(), "42"))
	assert.Equal(t, http.MethodPut, last.method)
	assert.Equal(t, "/user/42/premium/grant", last.path)
}

func TestRemovePremium(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.RemovePremium(context.Background(), "42"))
	assert.Equal(t, "/user/42/premium/remove", last.path)
}

func TestStoreCustomerID(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.StoreCustomerID(context.Background(), "42", "cus_123"))
	assert.Equal(t, "/user/42/stripe/customer", last.path)
	assert.Equal(t, map[string]string{"stripe_customer_id": "cus_123"}, last.body)
}

func TestStoreSubscriptionID(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.StoreSubscriptionID(context.Background(), "42", "sub_123"))
	assert.Equal(t, "/user/42/stripe/subscription", last.path)
	assert.Equal(t, map[string]string{"stripe_subscription_id": "sub_123"}, last.body)
}

func TestGrantPremiumByEmail(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.GrantPremiumByEmail(context.Background(), "a@x.com"))
	assert.Equal(t, "/user/premium/grant_by_email", last.path)
	assert.Equal(t, map[string]string{"email": "a@x.com"}, last.body)
}

func TestRemovePremiumByEmail(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.RemovePremiumByEmail(context.Background(), "a@x.com"))
	assert.Equal(t, "/user/premium/remove_by_email", last.path)
}

func TestStoreSubscriptionIDByEmail(t *testing.T) {
	server, last := newRecordingServer(t, http.StatusOK, nil)
	client := newTestClient(t, server.URL)

	require.NoError(t, client.StoreSubscriptionIDByEmail(context.Background(), "a@x.com", "sub_123"))
	assert.Equal(t, "/user/stripe/subscription", last.path)
	assert.Equal(t, map[string]string{
		"email":                  "a@x.com",
		"stripe_subscription_id": "sub_123",
	}, last.body)
}

func TestPut_NotFound(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusNotFound, nil)
	client := newTestClient(t, server.URL)

	assert.ErrorIs(t, client.GrantPremium(context.Background(), "404"), ErrUserNotFound)
}

func TestPut_ServerError(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusBadGateway, nil)
	client := newTestClient(t, server.URL)

	assert.ErrorIs(t, client.GrantPremium(context.Background(), "42"), ErrUnavailable)
}

func TestClient_Unreachable(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.FindByCustomerID(context.Background(), "cus_123")
	assert.ErrorIs(t, err, ErrUnavailable)
}
