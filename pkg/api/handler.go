// Package api provides HTTP endpoints for the outbound subscription
// operations: starting a checkout, scheduling a cancellation, and syncing an
// entitlement from provider state. Webhook ingestion lives on the provider
// itself; these endpoints sit behind the application's own authentication.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sourcebox-llc/entitlements/pkg/billing"
)

const (
	maxUserIDLen  = 255
	maxAPIBodyLen = 16 * 1024
)

// Handler provides HTTP endpoints for billing operations
type Handler struct {
	config Config
}

// CreateCheckout returns a hosted checkout page URL for the requesting user.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.PriceID == "" {
		h.handleError(w, r, fmt.Errorf("price_id is required"), http.StatusBadRequest)
		return
	}

	url, err := h.config.Billing.CheckoutURL(r.Context(), userID, req.Email,
		req.PriceID, req.SuccessURL, req.CancelURL)
	if err != nil {
		h.handleBillingError(w, r, err)
		return
	}

	h.config.Logger.Info("checkout session created",
		billing.Field{Key: "user_id", Value: userID},
		billing.Field{Key: "price_id", Value: req.PriceID},
	)
	h.writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

// CancelSubscription schedules the subscription to cancel at period end.
// Premium stays in place until the provider reports the final deletion.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CancelRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.SubscriptionID == "" {
		h.handleError(w, r, fmt.Errorf("subscription_id is required"), http.StatusBadRequest)
		return
	}

	if err := h.config.Billing.ScheduleCancellation(r.Context(), req.SubscriptionID); err != nil {
		h.handleBillingError(w, r, err)
		return
	}

	h.config.Logger.Info("subscription cancellation scheduled",
		billing.Field{Key: "user_id", Value: userID},
		billing.Field{Key: "stripe_subscription_id", Value: req.SubscriptionID},
	)
	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

// SyncEntitlement re-derives the user's premium entitlement from the
// provider's live subscription state.
func (h *Handler) SyncEntitlement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.CustomerID == "" {
		h.handleError(w, r, fmt.Errorf("customer_id is required"), http.StatusBadRequest)
		return
	}

	if err := h.config.Billing.SyncCustomer(r.Context(), userID, req.CustomerID); err != nil {
		h.handleBillingError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		h.handleError(w, r, fmt.Errorf("user ID not found"), http.StatusUnauthorized)
		return "", false
	}
	if len(userID) > maxUserIDLen {
		h.handleError(w, r, fmt.Errorf("invalid user ID format"), http.StatusBadRequest)
		return "", false
	}
	return userID, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodyLen)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.handleError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) handleBillingError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, billing.ErrProviderNotConfigured) {
		status = http.StatusServiceUnavailable
	}
	h.config.Logger.Error("billing operation failed",
		billing.Field{Key: "path", Value: r.URL.Path},
		billing.Field{Key: "error", Value: err.Error()},
	)
	h.handleError(w, r, fmt.Errorf("billing operation failed"), status)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}
	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
