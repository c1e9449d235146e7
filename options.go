package fincache

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/AnandSundar/go-fincache/internal/logging"
)

const (
	// DefaultCachePrefix names the generation caches "<prefix>-static-<version>"
	// and "<prefix>-runtime-<version>"
	DefaultCachePrefix = "fintrack"
	// DefaultVersion is the cache generation used when none is configured
	DefaultVersion = "v1"
	// DefaultAPIPrefix is the path prefix reserved for backend calls
	DefaultAPIPrefix = "/api/"
	// DefaultEntryPoint is served to navigations when everything else fails
	DefaultEntryPoint = "/index.html"
)

// DefaultPrecache is the app shell fetched at install time
var DefaultPrecache = []string{
	"/",
	"/index.html",
	"/css/styles.css",
	"/js/app.js",
	"/js/api-helper.js",
	"/js/cache.js",
	"/js/i18n.js",
	"/manifest.json",
}

// Config holds worker configuration
type Config struct {
	CachePrefix   string
	Version       string
	Precache      []string
	ExternalHosts []string
	APIHosts      []string
	APIPrefix     string
	EntryPoint    string
	SkipWaiting   bool
	Transport     http.RoundTripper
	Logger        logging.Logger
	Metrics       Metrics
	Now           func() time.Time
}

// Option is a functional option for configuring the worker
type Option func(*Config)

// WithVersion sets the cache generation
func WithVersion(version string) Option {
	return func(c *Config) {
		c.Version = version
	}
}

// WithCachePrefix sets the prefix of both generation cache names
func WithCachePrefix(prefix string) Option {
	return func(c *Config) {
		c.CachePrefix = prefix
	}
}

// WithPrecache replaces the install-time manifest
func WithPrecache(paths ...string) Option {
	return func(c *Config) {
		c.Precache = paths
	}
}

// WithExternalHosts allow-lists foreign hosts whose assets are cached
// cache-first (CDN fonts, the Telegram SDK script)
func WithExternalHosts(hosts ...string) Option {
	return func(c *Config) {
		c.ExternalHosts = hosts
	}
}

// WithAPIHosts lists foreign hosts whose API-prefixed paths are treated as
// backend calls
func WithAPIHosts(hosts ...string) Option {
	return func(c *Config) {
		c.APIHosts = hosts
	}
}

// WithAPIPrefix sets the path prefix reserved for backend calls
func WithAPIPrefix(prefix string) Option {
	return func(c *Config) {
		c.APIPrefix = prefix
	}
}

// WithEntryPoint sets the page served to failed navigations
func WithEntryPoint(path string) Option {
	return func(c *Config) {
		c.EntryPoint = path
	}
}

// WithSkipWaiting controls whether Install activates the worker on its own.
// With false the worker waits in StateActivating until Activate is called.
func WithSkipWaiting(skip bool) Option {
	return func(c *Config) {
		c.SkipWaiting = skip
	}
}

// WithTransport sets the network transport the worker wraps
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithClock replaces time.Now for cache timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}

// Manifest is the JSON file describing a worker generation.
type Manifest struct {
	Version       string   `json:"version"`
	Precache      []string `json:"precache"`
	ExternalHosts []string `json:"external_hosts"`
	APIHosts      []string `json:"api_hosts"`
}

// ReadManifest loads a Manifest from a JSON file.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Options converts the manifest into worker options. Empty fields keep the
// defaults.
func (m *Manifest) Options() []Option {
	var opts []Option
	if m.Version != "" {
		opts = append(opts, WithVersion(m.Version))
	}
	if len(m.Precache) > 0 {
		opts = append(opts, WithPrecache(m.Precache...))
	}
	if len(m.ExternalHosts) > 0 {
		opts = append(opts, WithExternalHosts(m.ExternalHosts...))
	}
	if len(m.APIHosts) > 0 {
		opts = append(opts, WithAPIHosts(m.APIHosts...))
	}
	return opts
}
