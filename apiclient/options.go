package apiclient

import (
	"net/http"

	"github.com/AnandSundar/go-fincache/coalesce"
	"github.com/AnandSundar/go-fincache/internal/logging"
	"github.com/AnandSundar/go-fincache/ttlcache"
)

// TokenStore persists the auth token between runs.
type TokenStore interface {
	// Load returns the saved token, or "" when there is none.
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its transport is where an offline
// fincache.Worker goes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenStore sets where the auth token is persisted.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.tokens = s
	}
}

// WithCache enables cached reads for endpoints that use it.
func WithCache(cache *ttlcache.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithCoalescer replaces the default request coalescer.
func WithCoalescer(g *coalesce.Group[*Response]) Option {
	return func(c *Client) {
		c.flights = g
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}
