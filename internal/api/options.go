package api

import (
	"net/http"
	"time"

	"github.com/tonehq/tonectl/internal/logging"
)

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets the backend root, e.g. https://api.tonehq.ai
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger attaches a diagnostic logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentials sets where the bearer token and tenant id come from
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = creds
	}
}
