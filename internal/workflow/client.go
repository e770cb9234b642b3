// ABOUTME: HTTP client for the reply-generation workflow webhook
// ABOUTME: Posts the agent configuration and user message, returns the generated reply

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	// ErrUnavailable wraps every transport, status and decode failure.
	ErrUnavailable = errors.New("workflow unavailable")
	// ErrEmptyReply is returned when the workflow answers without a response field.
	ErrEmptyReply = errors.New("workflow returned no response")
)

// maxResponseBytes bounds how much of a workflow reply is read.
const maxResponseBytes = 1 << 20

// Request is the payload sent to the workflow for one chat turn.
type Request struct {
	UserID            string         `json:"user_id"`
	AgentID           string         `json:"agent_id"`
	AgentType         string         `json:"agent_type"`
	AgentName         string         `json:"agent_name"`
	PersonalityPrompt string         `json:"personality_prompt"`
	Capabilities      []string       `json:"capabilities"`
	Message           string         `json:"message"`
	ConversationID    string         `json:"conversation_id"`
	UserContext       map[string]any `json:"user_context,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}

// Reply is the workflow's answer. Any other fields the webhook returns are
// ignored; message metadata records the agent type, not workflow internals.
type Reply struct {
	Text string
}

type replyBody struct {
	Response *string `json:"response"`
}

// Generator produces assistant replies. The message pipeline depends on this
// interface so tests can substitute a fake.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Reply, error)
}

// Client calls the workflow webhook over HTTP.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ Generator = (*Client)(nil)

// NewClient creates a workflow client. The caller bounds each call with a
// context deadline; the http.Client has no timeout of its own.
func NewClient(url, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{},
		logger: logger.With("component", "workflow"),
	}
}

// Generate posts the request and returns the reply text.
func (c *Client) Generate(ctx context.Context, req *Request) (*Reply, error) {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if req.Capabilities == nil {
		req.Capabilities = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(data), 200))
	}

	var rb replyBody
	if err := json.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if rb.Response == nil || *rb.Response == "" {
		return nil, ErrEmptyReply
	}

	c.logger.Debug("workflow replied",
		"agent_id", req.AgentID,
		"conversation_id", req.ConversationID,
		"duration", time.Since(start))

	return &Reply{Text: *rb.Response}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
