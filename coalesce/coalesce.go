// Package coalesce merges concurrent identical outbound requests into a
// single call whose outcome every caller shares.
package coalesce

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"
)

// DefaultTimeout bounds a shared call so a hung request cannot pin its key.
const DefaultTimeout = 30 * time.Second

// Key derives the identity of a request from its method, URL and body.
// Query parameters are sorted by name first, so two URLs that differ only in
// parameter order produce the same key.
func Key(method, rawURL string, body []byte) string {
	h := blake3.New(32, nil)
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(normalizeURL(rawURL)))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}

// Metrics receives one event per completed Do call.
type Metrics interface {
	// Coalesced reports whether the caller shared another caller's call.
	Coalesced(shared bool)
}

type noopMetrics struct{}

func (noopMetrics) Coalesced(bool) {}

// Group de-duplicates calls returning T.
type Group[T any] struct {
	sf       singleflight.Group
	timeout  time.Duration
	metrics  Metrics
	inFlight atomic.Int64
}

// Option configures a Group.
type Option func(*options)

type options struct {
	timeout time.Duration
	metrics Metrics
}

// WithTimeout bounds every shared call; 0 disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns an empty Group.
func New[T any](opts ...Option) *Group[T] {
	o := &options{timeout: DefaultTimeout, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(o)
	}
	return &Group[T]{timeout: o.timeout, metrics: o.metrics}
}

// Do calls fn once for all concurrent callers using the same key; all of
// them receive its value or error. Once fn returns the key is forgotten, so
// the next call runs fn again.
//
// fn runs on a context detached from the caller's cancellation: one caller
// giving up does not fail the others. A caller whose ctx ends stops waiting
// and gets ctx.Err().
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		g.inFlight.Add(1)
		defer g.inFlight.Add(-1)

		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		return fn(callCtx)
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		g.metrics.Coalesced(res.Shared)
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

// Exclusive calls fn without sharing it with anyone. It is meant for calls
// that establish identity or a session, which are never interchangeable.
func (g *Group[T]) Exclusive(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return fn(ctx)
}

// InFlight returns the number of keys with a call currently running.
func (g *Group[T]) InFlight() int {
	return int(g.inFlight.Load())
}

func (g *Group[T]) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if g.timeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, g.timeout)
}
