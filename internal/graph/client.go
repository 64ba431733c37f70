// Package graph manages push-notification subscriptions against the Microsoft
// Graph mail API: one outbound request per call, no internal retries. Retry
// policy belongs to the caller.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/replyflow/mailhook/internal/clientstate"
)

// Client creates and renews mail subscriptions for one Graph tenant endpoint.
type Client struct {
	baseURL    string
	codec      *clientstate.Codec
	leadTime   time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// Option adjusts optional client behaviour.
type Option func(*Client)

// WithLeadTime overrides the requested subscription lifetime. Values at or
// above the provider's 60 minute ceiling are rejected at call time by the
// provider, not here.
func WithLeadTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.leadTime = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func withNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constructs a subscription client. An empty baseURL selects the
// public Graph v1.0 endpoint.
func NewClient(baseURL string, codec *clientstate.Codec, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL:    base,
		codec:      codec,
		leadTime:   DefaultLeadTime,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers an inbox subscription for accountID, minting the signed
// client-state token that later authenticates the provider's notifications.
func (c *Client) Create(ctx context.Context, accountID, notificationURL, accessToken string) (Subscription, error) {
	token, err := c.codec.Encode(accountID)
	if err != nil {
		return Subscription{}, fmt.Errorf("mint client state: %w", err)
	}

	body := subscriptionRequest{
		ChangeType:          "created",
		NotificationURL:     strings.TrimSpace(notificationURL),
		Resource:            InboxResource,
		ExpirationDateTime:  c.expiration(),
		ClientState:         token,
		IncludeResourceData: false,
	}
	raw, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/subscriptions", bytes.NewReader(raw))
	if err != nil {
		return Subscription{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Subscription{}, &CreateError{Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Subscription{}, fmt.Errorf("decode subscription response: %w", err)
	}
	return sub, nil
}

// Renew extends an existing subscription's expiration. The original
// client-state token stays valid for the life of the subscription; renewal
// never re-mints it.
func (c *Client) Renew(ctx context.Context, accessToken, subscriptionID string) (Subscription, error) {
	raw, _ := json.Marshal(renewRequest{ExpirationDateTime: c.expiration()})

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/subscriptions/"+subscriptionID, bytes.NewReader(raw))
	if err != nil {
		return Subscription{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Subscription{}, fmt.Errorf("renew subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Subscription{}, &RenewError{SubscriptionID: subscriptionID, Status: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Subscription{}, fmt.Errorf("decode subscription response: %w", err)
	}
	if sub.ID == "" {
		sub.ID = subscriptionID
	}
	return sub, nil
}

// LeadTime reports the configured requested subscription lifetime.
func (c *Client) LeadTime() time.Duration {
	return c.leadTime
}

func (c *Client) expiration() string {
	return c.now().UTC().Add(c.leadTime).Format(time.RFC3339)
}

func readErrorBody(r io.Reader) string {
	payload, _ := io.ReadAll(io.LimitReader(r, 1<<16))
	return strings.TrimSpace(string(payload))
}
