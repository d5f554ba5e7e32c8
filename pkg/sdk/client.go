// Package coach provides a Go client for the coachd answering service.
//
//	client := coach.New("http://localhost:8080", coach.WithAPIKey("secret"))
//	answer, err := client.Ask(ctx, "How do I stay calm before a match?")
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to a coachd server over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the Client.
type Option interface {
	apply(*Client)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*Client)

func (f optionFunc) apply(c *Client) { f(c) }

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *Client) {
		c.apiKey = key
	})
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *Client) {
		c.httpClient = hc
	})
}

// WithTimeout sets the per-request timeout. Default: 60s; answer composition
// waits on two model calls, so keep this generous.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *Client) {
		c.httpClient.Timeout = d
	})
}

// New creates a coachd client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// AskRequest carries one question. UserID is optional and used only for
// server-side log correlation.
type AskRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask sends a question and returns the composed answer.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	return c.AskWith(ctx, AskRequest{Query: query})
}

// AskWith sends a question with full request control.
func (c *Client) AskWith(ctx context.Context, req AskRequest) (string, error) {
	var resp askResponse
	if err := c.post(ctx, "/api/coach", req, &resp); err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded"
	Checks map[string]string `json:"checks"` // component -> "ok"/"error"
}

// Health reports the health of the server's components. A degraded report is
// not an error; the caller inspects Status.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("coach: build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("coach: request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	// /health returns the same body for 200 and 503
	var status HealthStatus
	if err := json.NewDecoder(httpResp.Body).Decode(&status); err != nil {
		return HealthStatus{}, fmt.Errorf("coach: decode response: %w", err)
	}
	return status, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("coach: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("coach: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("coach: request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode >= 400 {
		return decodeAPIError(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("coach: decode response: %w", err)
	}
	return nil
}
