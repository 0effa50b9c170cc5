package api

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"
)

// Client provides access to the local client REST API.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. authHeader is sent verbatim as the
// Authorization header (see auth.BasicAuthHeader).
func NewClient(baseURL, authHeader string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		authHeader: authHeader,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: NewLoopbackTransport(),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewLoopbackTransport returns a transport for the loopback API: certificate
// verification is disabled and connections are not reused.
func NewLoopbackTransport() *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // loopback endpoint with a self-signed certificate
		},
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
