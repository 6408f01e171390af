package directory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Config holds the directory client configuration.
type Config struct {
	// BaseURL is the root of the user-directory API (required).
	BaseURL string

	// AuthToken is sent as a Bearer token on every request (optional).
	AuthToken string

	// Timeout bounds every outbound call. Defaults to 10s.
	Timeout time.Duration
}

// Client implements Service against the directory's HTTP JSON API.
type Client struct {
	http *resty.Client
}

// NewClient creates a directory client for the given base URL.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("directory base URL is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if config.AuthToken != "" {
		httpClient.SetAuthToken(config.AuthToken)
	}

	return &Client{http: httpClient}, nil
}

type userResult struct {
	ID string `json:"id"`
}

// FindByCustomerID implements Service.
func (c *Client) FindByCustomerID(ctx context.Context, customerID string) (string, error) {
	return c.search(ctx, "stripe_customer_id", customerID)
}

// FindByEmail implements Service.
func (c *Client) FindByEmail(ctx context.Context, email string) (string, error) {
	return c.search(ctx, "email", email)
}

func (c *Client) search(ctx context.Context, key, value string) (string, error) {
	var user userResult

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(key, value).
		SetResult(&user).
		Get("/users/search")
	if err != nil {
		return "", fmt.Errorf("%w: search by %s: %v", ErrUnavailable, key, err)
	}

	switch resp.StatusCode() {
	case 200:
		if user.ID == "" {
			return "", fmt.Errorf("%w: search by %s returned empty user id", ErrUnavailable, key)
		}
		return user.ID, nil
	case 404:
		return "", ErrUserNotFound
	default:
		return "", fmt.Errorf("%w: search by %s returned status %d", ErrUnavailable, key, resp.StatusCode())
	}
}

// GrantPremium implements Service.
func (c *Client) GrantPremium(ctx context.Context, userID string) error {
	return c.put(ctx, fmt.Sprintf("/user/%s/premium/grant", url.PathEscape(userID)), nil)
}

// RemovePremium implements Service.
func (c *Client) RemovePremium(ctx context.Context, userID string) error {
	return c.put(ctx, fmt.Sprintf("/user/%s/premium/remove", url.PathEscape(userID)), nil)
}

// StoreCustomerID implements Service.
func (c *Client) StoreCustomerID(ctx context.Context, userID, customerID string) error {
	return c.put(ctx, fmt.Sprintf("/user/%s/stripe/customer", url.PathEscape(userID)), map[string]string{
		"stripe_customer_id": customerID,
	})
}

// StoreSubscriptionID implements Service.
func (c *Client) StoreSubscriptionID(ctx context.Context, userID, subscriptionID string) error {
	return c.put(ctx, fmt.Sprintf("/user/%s/stripe/subscription", url.PathEscape(userID)), map[string]string{
		"stripe_subscription_id": subscriptionID,
	})
}

// GrantPremiumByEmail implements Service.
func (c *Client) GrantPremiumByEmail(ctx context.Context, email string) error {
	return c.put(ctx, "/user/premium/grant_by_email", map[string]string{
		"email": email,
	})
}

// RemovePremiumByEmail implements Service.
func (c *Client) RemovePremiumByEmail(ctx context.Context, email string) error {
	return c.put(ctx, "/user/premium/remove_by_email", map[string]string{
		"email": email,
	})
}

// StoreSubscriptionIDByEmail implements Service.
func (c *Client) StoreSubscriptionIDByEmail(ctx context.Context, email, subscriptionID string) error {
	return c.put(ctx, "/user/stripe/subscription", map[string]string{
		"email":                  email,
		"stripe_subscription_id": subscriptionID,
	})
}

func (c *Client) put(ctx context.Context, path string, body map[string]string) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Put(path)
	if err != nil {
		return fmt.Errorf("%w: PUT %s: %v", ErrUnavailable, path, err)
	}

	switch resp.StatusCode() {
	case 200:
		return nil
	case 404:
		return ErrUserNotFound
	default:
		return fmt.Errorf("%w: PUT %s returned status %d", ErrUnavailable, path, resp.StatusCode())
	}
}
