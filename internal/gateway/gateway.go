// Package gateway sends prompts to an OpenAI-compatible completion endpoint.
//
// Every failure is absorbed at this boundary: callers get an empty string and
// a warning is logged. Phase generators turn the empty string into a sentinel
// or placeholder, so a dead model server never aborts a pipeline run.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/logging"
)

// Defaults mirror the local Ollama completion API.
const (
	DefaultEndpoint    = "http://localhost:11434/v1/completions"
	DefaultMaxTokens   = 6000
	DefaultTemperature = 0.7
)

// maxErrorBody bounds how much of a failed response is logged.
const maxErrorBody = 512

// Invoker sends one prompt to one model and returns the completion text.
// An empty string means the call produced nothing usable.
type Invoker interface {
	Invoke(ctx context.Context, prompt, model string) string
}

// HTTPClient interface for HTTP requests (enables testing)
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Verify http.Client implements HTTPClient
var _ HTTPClient = (*http.Client)(nil)

// Client is the HTTP-backed Invoker.
type Client struct {
	endpoint    string
	client      HTTPClient
	maxTokens   int
	temperature float64
	log         *zap.Logger
}

var _ Invoker = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.client = c }
}

// WithMaxTokens sets max_tokens on every request.
func WithMaxTokens(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(cl *Client) { cl.temperature = t }
}

// WithLogger sets the logger used for warnings and call timings.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.log = logging.Component(l, "gateway") }
}

// New creates a Client for endpoint; an empty endpoint uses DefaultEndpoint.
func New(endpoint string, opts ...Option) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:    endpoint,
		client:      &http.Client{},
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the completion URL.
func (c *Client) Endpoint() string { return c.endpoint }

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Invoke posts prompt to the endpoint using model. It never returns an error;
// any failure yields "".
func (c *Client) Invoke(ctx context.Context, prompt, model string) string {
	if strings.TrimSpace(prompt) == "" {
		c.log.Warn("empty prompt, skipping model call", zap.String("model", model))
		return ""
	}
	if strings.TrimSpace(model) == "" {
		c.log.Warn("no model selected, skipping model call")
		return ""
	}

	requestID := logging.EnsureRequestID(ctx)
	log := c.log.With(zap.String("model", model), zap.String("request_id", requestID))
	start := time.Now()

	text, err := c.post(ctx, requestID, completionRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		log.Warn("model call failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return ""
	}
	logging.Timed(log, "model call", start, zap.Int("prompt_bytes", len(prompt)), zap.Int("response_bytes", len(text)))
	return text
}

func (c *Client) post(ctx context.Context, requestID string, body completionRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Text), nil
}
