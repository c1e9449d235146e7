// Package ttlcache provides an in-memory key/value cache with per-entry
// expiry, substring invalidation and hit/miss accounting.
//
// Expiry is lazy: an expired entry is only removed when it is read again or
// explicitly deleted. With WithCapacity the cache also evicts the least
// recently used entry once it is full.
package ttlcache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AnandSundar/go-fincache/internal/logging"
)

// DefaultTTL is applied when Set receives a non-positive ttl.
const DefaultTTL = 300 * time.Second

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
	// HitRate is hits/(hits+misses) as a percentage, 0 before any access.
	HitRate float64
}

// Cache is a TTL cache safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	hits    uint64
	misses  uint64
	epoch   uint64 // advances on every Delete, Clear and ClearAll
	cfg     *Config
	logger  logging.Logger
	metrics Metrics
}

// New constructs an empty Cache.
func New(opts ...Option) *Cache {
	cfg := &Config{
		DefaultTTL: DefaultTTL,
		Now:        time.Now,
		Logger:     logging.Discard(),
		Metrics:    NoopMetrics{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Cache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Set stores value under key until now+ttl, replacing any previous entry.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	expiresAt := c.cfg.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value, expiresAt)
}

// set must be called with c.mu held.
func (c *Cache) set(key string, value any, expiresAt time.Time) {
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	if c.cfg.Capacity > 0 && len(c.items) >= c.cfg.Capacity {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expiresAt: expiresAt})
}

// Get returns the value for key if it is present and not expired.
// An expired entry is removed. Every call counts as a hit or a miss.
func (c *Cache) Get(key string) (any, bool) {
	now := c.cfg.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		c.metrics.Miss()
		return nil, false
	}

	ent := el.Value.(*entry)
	if !now.Before(ent.expiresAt) {
		c.removeElement(el)
		c.misses++
		c.metrics.Expire()
		c.metrics.Miss()
		c.logger.Debugf("ttlcache: expired %s", key)
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	c.metrics.Hit()
	return ent.value, true
}

// Has reports whether Get would return a value. It has the same side effects
// as Get, so prefer calling Get directly when the value is needed.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key. Removing a missing key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes every entry whose key contains pattern and returns how many
// were removed.
func (c *Cache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	removed := 0
	for key, el := range c.items {
		if strings.Contains(key, pattern) {
			c.removeElement(el)
			removed++
		}
	}
	c.logger.Debugf("ttlcache: cleared %d entries matching %q", removed, pattern)
	return removed
}

// ClearAll empties the cache. Counters are kept.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns the current size and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total) * 100
	}
	return s
}

// Fetch returns the cached value for key, or calls load, stores its result
// for ttl and returns it. Errors from load are returned and nothing is
// stored. A result is also not stored when the cache was invalidated by
// Delete, Clear or ClearAll while load ran, since it may predate the change.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	expiresAt := c.cfg.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.Debugf("ttlcache: %s invalidated during load, not stored", key)
		return v, nil
	}
	c.set(key, v, expiresAt)
	return v, nil
}

func (c *Cache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.logger.Debugf("ttlcache: evicting %s", el.Value.(*entry).key)
	c.removeElement(el)
	c.metrics.Evict()
}

// removeElement must be called with c.mu held.
func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
