package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/gateway"
	"github.com/rickgao/polymarket-realtime/internal/version"
)

// Default endpoints.
const (
	DefaultBaseURL  = "https://clob.polymarket.com"
	DefaultGammaURL = "https://gamma-api.polymarket.com"
)

var (
	_ gateway.MarketDirectory = (*Client)(nil)
	_ gateway.OrderReader     = (*Client)(nil)
)

// Client provides access to the CLOB REST API.
type Client struct {
	baseURL    string
	gammaURL   string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	// L2 credentials for /data endpoints; nil for public use.
	creds   *auth.Credentials
	address string

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		gammaURL:  DefaultGammaURL,
		userAgent: version.UserAgent(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
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

// WithGammaURL sets the market catalog endpoint used for slug lookups.
func WithGammaURL(u string) ClientOption {
	return func(c *Client) {
		c.gammaURL = strings.TrimRight(u, "/")
	}
}

// WithCredentials enables the authenticated endpoints. address is the
// funder/signer address sent as POLY_ADDRESS.
func WithCredentials(creds auth.Credentials, address string) ClientOption {
	return func(c *Client) {
		c.creds = &creds
		c.address = address
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}
