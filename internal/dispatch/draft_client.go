package dispatch

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

// DraftClient forwards validated notifications to the draft-generation
// service, authenticated with the shared internal secret.
type DraftClient struct {
	endpoint       string
	apiKey         string
	internalSecret string
	httpClient     *http.Client
}

type draftRequest struct {
	SubjectID string `json:"subjectId"`
	MessageID string `json:"messageId"`
}

type draftResponse struct {
	DraftID string `json:"draftId"`
	Error   string `json:"error"`
}

// NewDraftClient constructs the draft-service client. The forward timeout is
// deliberately short so one slow notification cannot starve its batch.
func NewDraftClient(endpoint, apiKey, internalSecret string) *DraftClient {
	return &DraftClient{
		endpoint:       strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:         strings.TrimSpace(apiKey),
		internalSecret: strings.TrimSpace(internalSecret),
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether the client has everything it needs to forward.
func (c *DraftClient) Configured() bool {
	return c != nil && c.endpoint != "" && c.internalSecret != ""
}

// Generate asks the draft service to author a reply draft for one message.
// The returned draft id may be empty when the service accepted the request
// without reporting one.
func (c *DraftClient) Generate(ctx context.Context, subjectID, messageID string) (string, error) {
	raw, _ := json.Marshal(draftRequest{SubjectID: subjectID, MessageID: messageID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("x-internal-secret", c.internalSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("forward to draft service: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var parsed draftResponse
		if json.Unmarshal(payload, &parsed) == nil && strings.TrimSpace(parsed.Error) != "" {
			return "", fmt.Errorf("draft service: %s", strings.TrimSpace(parsed.Error))
		}
		return "", fmt.Errorf("draft service: status %d", resp.StatusCode)
	}

	var parsed draftResponse
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return "", fmt.Errorf("decode draft response: %w", err)
		}
	}
	return parsed.DraftID, nil
}
