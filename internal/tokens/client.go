// Package tokens fetches provider access tokens from the internal token
// service. OAuth refresh mechanics live there, not here.
package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client requests per-account access tokens, authenticated with the shared
// internal secret.
type Client struct {
	baseURL        string
	internalSecret string
	httpClient     *http.Client
}

// NewClient constructs the token-service client.
func NewClient(baseURL, internalSecret string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		internalSecret: strings.TrimSpace(internalSecret),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether the client can reach the token service.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.internalSecret != ""
}

// AccessToken returns a fresh provider access token for accountID.
func (c *Client) AccessToken(ctx context.Context, accountID string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("token service not configured")
	}

	raw, _ := json.Marshal(map[string]string{"accountId": accountID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tokens", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-internal-secret", c.internalSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return "", fmt.Errorf("token service: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(parsed.AccessToken) == "" {
		return "", fmt.Errorf("token service returned empty access token")
	}
	return parsed.AccessToken, nil
}
