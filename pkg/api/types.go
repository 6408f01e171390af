package api

// CheckoutRequest starts a subscription checkout for the requesting user
type CheckoutRequest struct {
	Email      string `json:"email"`
	PriceID    string `json:"price_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CheckoutResponse carries the hosted checkout page URL
type CheckoutResponse struct {
	URL string `json:"url"`
}

// CancelRequest schedules a subscription cancellation at period end
type CancelRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

// SyncRequest re-derives the user's entitlement from provider state
type SyncRequest struct {
	CustomerID string `json:"customer_id"`
}

// StatusResponse acknowledges a side-effecting operation
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse carries a client-facing error message
type ErrorResponse struct {
	Error string `json:"error"`
}
