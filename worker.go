// Package fincache is the offline layer of the finance tracker mini app.
// A Worker sits between the API client and the network as an
// http.RoundTripper and answers requests from durable caches when the
// network fails, the way the app's service worker does in the browser.
//
// A worker goes through an explicit lifecycle: Install precaches the app
// shell, activation removes caches left by other generations, and only an
// active worker applies caching strategies. Until then requests pass
// straight through.
package fincache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/AnandSundar/go-fincache/internal/logging"
)

// State is a worker lifecycle state.
type State int

const (
	StateNew State = iota
	StateInstalling
	StateActivating
	StateActive
	// StateFailed means install could not precache the manifest.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Metrics receives one event per request the worker answers.
type Metrics interface {
	// Served reports the strategy used and where the response came from:
	// "network", "cache" or "offline".
	Served(strategy, source string)
}

type noopMetrics struct{}

func (noopMetrics) Served(string, string) {}

// Worker intercepts outbound requests and applies a caching strategy.
type Worker struct {
	cfg       *Config
	origin    *url.URL
	storage   Storage
	transport http.RoundTripper
	logger    logging.Logger
	metrics   Metrics

	mu    sync.RWMutex
	state State

	activating sync.Mutex // serializes Activate
}

// New returns a worker for the app served at origin, storing responses in
// storage.
func New(storage Storage, origin string, opts ...Option) (*Worker, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", origin)
	}

	cfg := &Config{
		CachePrefix: DefaultCachePrefix,
		Version:     DefaultVersion,
		Precache:    DefaultPrecache,
		APIPrefix:   DefaultAPIPrefix,
		EntryPoint:  DefaultEntryPoint,
		SkipWaiting: true,
		Transport:   http.DefaultTransport,
		Logger:      logging.Discard(),
		Metrics:     noopMetrics{},
		Now:         time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Worker{
		cfg:       cfg,
		origin:    u,
		storage:   storage,
		transport: cfg.Transport,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		state:     StateNew,
	}, nil
}

// StaticCacheName is the cache holding the precached app shell.
func (w *Worker) StaticCacheName() string {
	return w.cfg.CachePrefix + "-static-" + w.cfg.Version
}

// RuntimeCacheName is the cache holding responses learned while running.
func (w *Worker) RuntimeCacheName() string {
	return w.cfg.CachePrefix + "-runtime-" + w.cfg.Version
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.logger.Infof("worker %s: %s", w.cfg.Version, s)
}

// Install precaches every manifest asset and moves the worker to
// StateActivating. By default it then activates right away, without waiting
// for other workers; with WithSkipWaiting(false) it stops there and Activate
// must be called. Precaching is all-or-nothing: if any asset cannot be
// fetched nothing is stored, the worker moves to StateFailed and keeps
// passing requests through.
func (w *Worker) Install(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateNew {
		w.mu.Unlock()
		return ErrAlreadyInstalled
	}
	w.state = StateInstalling
	w.mu.Unlock()
	w.logger.Infof("worker %s: %s", w.cfg.Version, StateInstalling)

	if err := w.precache(ctx); err != nil {
		w.setState(StateFailed)
		return err
	}

	w.setState(StateActivating)
	if !w.cfg.SkipWaiting {
		return nil
	}
	return w.Activate(ctx)
}

// Activate deletes every cache outside the current generation and makes the
// worker take control: from then on RoundTrip applies caching strategies.
// It is only valid in StateActivating and returns ErrNotActivating
// otherwise.
func (w *Worker) Activate(ctx context.Context) error {
	w.activating.Lock()
	defer w.activating.Unlock()

	if w.State() != StateActivating {
		return ErrNotActivating
	}

	if err := w.activate(ctx); err != nil {
		w.setState(StateFailed)
		return err
	}
	w.setState(StateActive)
	return nil
}

// Start installs the worker and activates it if Install left it waiting.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	if w.State() == StateActivating {
		return w.Activate(ctx)
	}
	return nil
}

func (w *Worker) precache(ctx context.Context) error {
	fetched := make(map[string]*CachedResponse, len(w.cfg.Precache))
	for _, p := range w.cfg.Precache {
		ref, err := url.Parse(p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecache, p, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin.ResolveReference(ref).String(), nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecache, p, err)
		}

		res, err := w.transport.RoundTrip(req)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecache, p, err)
		}
		if !isSuccess(res.StatusCode) {
			res.Body.Close()
			return fmt.Errorf("%w: %s: status %d", ErrPrecache, p, res.StatusCode)
		}
		cached, err := NewCachedResponse(req, res, w.cfg.Now())
		res.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrecache, p, err)
		}
		fetched[RequestKey(req)] = cached
	}

	for key, cached := range fetched {
		if err := w.storage.Put(ctx, w.StaticCacheName(), key, cached); err != nil {
			return fmt.Errorf("%w: store %s: %v", ErrPrecache, key, err)
		}
	}
	w.logger.Infof("precached %d assets into %s", len(fetched), w.StaticCacheName())
	return nil
}

// activate deletes every cache outside the current generation.
func (w *Worker) activate(ctx context.Context) error {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}

	keep := []string{w.StaticCacheName(), w.RuntimeCacheName()}
	for _, name := range names {
		if slices.Contains(keep, name) {
			continue
		}
		if err := w.storage.Drop(ctx, name); err != nil {
			return fmt.Errorf("drop cache %s: %w", name, err)
		}
		w.logger.Infof("deleted old cache %s", name)
	}
	return nil
}

// RoundTrip implements http.RoundTripper. Requests the worker intercepts
// always get a response, never an error.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if w.State() != StateActive {
		return w.transport.RoundTrip(req)
	}

	strategy := w.Classify(req)
	switch strategy {
	case NetworkFirstShell:
		return w.networkFirstShell(req), nil
	case NetworkFirstAPI:
		return w.networkFirstAPI(req), nil
	case CacheFirst:
		return w.cacheFirst(req), nil
	default:
		w.metrics.Served(strategy.String(), "network")
		return w.transport.RoundTrip(req)
	}
}

// store saves a successful response into the named cache. Only a failure to
// read the body is returned; a storage failure is logged and never affects
// the response.
func (w *Worker) store(req *http.Request, res *http.Response, cache string) error {
	cached, err := NewCachedResponse(req, res, w.cfg.Now())
	if err != nil {
		return err
	}
	if err := w.storage.Put(req.Context(), cache, RequestKey(req), cached); err != nil {
		w.logger.Errorf("cache %s: %v", RequestKey(req), err)
	}
	return nil
}

// match looks a request up in the runtime cache, then the precache.
func (w *Worker) match(ctx context.Context, key string) (*CachedResponse, bool) {
	for _, name := range []string{w.RuntimeCacheName(), w.StaticCacheName()} {
		cached, err := w.storage.Match(ctx, name, key)
		if err == nil {
			return cached, true
		}
		if !errors.Is(err, ErrNotFound) {
			w.logger.Warnf("match %s in %s: %v", key, name, err)
		}
	}
	return nil, false
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
