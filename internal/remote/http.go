package remote

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

// HTTPClient implements Client against the chat backend REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for the given API base URL. The token is
// sent as a bearer credential on every request.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListUsers implements Client.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListMessages implements Client.
func (c *HTTPClient) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/messages/"+conversationID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage implements Client.
func (c *HTTPClient) SendMessage(ctx context.Context, conversationID string, p SendPayload) (*Message, error) {
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/messages/send/"+conversationID, p, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain for connection reuse; the status is all the engine needs.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w: %w", ErrUnavailable, err)
		}
	}
	return nil
}
