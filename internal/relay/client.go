package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no webhook URL has been set.
var ErrNotConfigured = errors.New("relay webhook URL is not configured")

// replyKeys is the ordered candidate list tried against a relay response
// before falling back to the serialized document.
var replyKeys = []string{"reply", "message", "text"}

// Client wraps the call to the external automation webhook. A single failed
// attempt is final: retries and recovery belong to the exchange layer, which
// marks the slot failed.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// NewClient creates a relay client. The timeout bounds the webhook call
// itself, independently of any client-declared polling timeout.
func NewClient(webhookURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Invoke posts the payload to the webhook and returns the decoded response
// document. A non-JSON success body is wrapped as {"reply": <body>} so plain
// text automations still produce a displayable reply.
func (c *Client) Invoke(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if c.webhookURL == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling relay webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return map[string]any{"reply": string(respBody)}, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(respBody, &doc); err != nil {
		return nil, fmt.Errorf("error unmarshaling relay response: %w", err)
	}
	return doc, nil
}

// ExtractReply picks the display text out of a relay response document.
// Candidate keys are tried in order; when none holds a non-empty string the
// whole document is serialized so the client still has something to show.
func ExtractReply(doc map[string]any) string {
	for _, key := range replyKeys {
		if v, ok := doc[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}

	serialized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("%v", doc)
	}
	return string(serialized)
}
