// Package api is the typed HTTP client for the Tone backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tonehq/tonectl/internal/logging"
)

// DefaultTimeout applies when no timeout option is given
const DefaultTimeout = 30 * time.Second

// Credentials supplies the values attached to every request
type Credentials interface {
	AccessToken() string
	TenantID() string
}

// StaticCredentials is a fixed token and tenant pair
type StaticCredentials struct {
	Token  string
	Tenant string
}

func (s StaticCredentials) AccessToken() string { return s.Token }
func (s StaticCredentials) TenantID() string    { return s.Tenant }

// Client talks JSON to the backend. It never retries.
type Client struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	creds   Credentials
	logger  *logging.Logger
}

// New creates a client with the provided options
func New(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	return c
}

// BaseURL returns the backend root this client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one backend call
type request struct {
	method   string
	path     string
	query    url.Values
	body     interface{}
	bearer   string // overrides the stored access token
	skipAuth bool
}

// do sends req and decodes a 2xx JSON answer into out (when non-nil)
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.authorize(httpReq, req)

	c.logger.Debug().Str("method", req.method).Str("path", req.path).Msg("backend request")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", req.method).Str("path", req.path).Msg("backend unreachable")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, req.method, req.path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newError(resp.StatusCode, data)
		c.logger.Warn().
			Str("method", req.method).
			Str("path", req.path).
			Int("status", resp.StatusCode).
			Str("detail", apiErr.Detail).
			Msg("backend rejected request")
		return apiErr
	}

	c.logger.Debug().Str("path", req.path).Int("status", resp.StatusCode).Msg("backend response")

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response from %s: %w", req.path, err)
	}
	return nil
}

func (c *Client) authorize(httpReq *http.Request, req request) {
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
		return
	}
	if req.skipAuth || c.creds == nil {
		return
	}
	if token := c.creds.AccessToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if tenant := c.creds.TenantID(); tenant != "" {
		httpReq.Header.Set("tenant_id", tenant)
	}
}
