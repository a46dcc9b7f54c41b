package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/logger"
	"github.com/layer-3/walletsso/metrics"
	"github.com/tidwall/gjson"
)

// Client talks to the authentication backend over HTTP and WebSocket
type Client struct {
	baseURL string
	wsURL   string
	http    *http.Client
	dialer  *websocket.Dialer

	clientID     string
	clientSecret string
	redirectURI  string

	logger  logger.Logger
	metrics metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. to share a cookie jar
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithClientCredentials identifies the relying application to the backend
func WithClientCredentials(id, secret string) Option {
	return func(cl *Client) {
		cl.clientID = id
		cl.clientSecret = secret
	}
}

// WithRedirectURI is sent along with challenge requests
func WithRedirectURI(uri string) Option {
	return func(cl *Client) {
		cl.redirectURI = uri
	}
}

// WithWebSocketURL overrides the WebSocket endpoint derived from the base URL
func WithWebSocketURL(u string) Option {
	return func(cl *Client) {
		cl.wsURL = strings.TrimRight(u, "/")
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(cl *Client) {
		cl.metrics = metrics.OrNoop(r)
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		baseURL: base,
		wsURL:   websocketURL(base),
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// do performs one JSON round-trip. Non-2xx answers become *core.BackendError,
// network failures wrap core.ErrTransport.
func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) error {
	start := time.Now()
	defer func() {
		c.metrics.ObserveLatency("backend_"+op, time.Since(start), nil)
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.clientSecret != "" {
		req.Header.Set("X-Client-Secret", c.clientSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend unreachable", map[string]any{"path": path, "error": err})
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", core.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		backendErr := &core.BackendError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
		c.logger.Debug("backend returned an error", map[string]any{
			"path":   path,
			"status": resp.StatusCode,
			"error":  backendErr.Message,
		})
		return backendErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &core.BackendError{Status: resp.StatusCode, Message: "malformed response from " + path}
	}
	return nil
}

// errorMessage picks the failure reason out of an error body, falling back to the status text
func errorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, field := range []string{"error_description", "error", "message"} {
			if r := gjson.GetBytes(body, field); r.Type == gjson.String && r.String() != "" {
				return r.String()
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("API Error: %d", status)
}
