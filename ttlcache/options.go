package ttlcache

import (
	"time"

	"github.com/AnandSundar/go-fincache/internal/logging"
)

// Config holds cache configuration
type Config struct {
	DefaultTTL time.Duration
	// Capacity bounds the number of entries; 0 means unbounded.
	Capacity int
	Now      func() time.Time
	Logger   logging.Logger
	Metrics  Metrics
}

// Option is a functional option for configuring the cache
type Option func(*Config)

// WithDefaultTTL sets the ttl used when Set is called with ttl <= 0
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) {
		if ttl > 0 {
			c.DefaultTTL = ttl
		}
	}
}

// WithCapacity bounds the cache to n entries with least-recently-used
// eviction
func WithCapacity(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Capacity = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
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
