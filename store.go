package fincache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// CachedHeader marks responses served from a durable cache.
const CachedHeader = "X-Offline-Cache"

// Storage holds named durable caches of responses, the way a browser's
// CacheStorage does. Keys are request identities (see RequestKey).
type Storage interface {
	// Match returns the response stored under key in the named cache,
	// or ErrNotFound.
	Match(ctx context.Context, cache, key string) (*CachedResponse, error)

	// Put stores a response under key, creating the cache if needed
	Put(ctx context.Context, cache, key string, response *CachedResponse) error

	// Keys lists the keys stored in the named cache
	Keys(ctx context.Context, cache string) ([]string, error)

	// Names lists every cache that exists
	Names(ctx context.Context) ([]string, error)

	// Drop deletes the named cache and everything in it. Dropping a missing
	// cache is not an error.
	Drop(ctx context.Context, cache string) error
}

// CachedResponse represents a cached HTTP response
type CachedResponse struct {
	Method     string      `json:"method"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	Timestamp  time.Time   `json:"timestamp"`
}

// RequestKey is the identity a request is cached under. A bare origin and
// the origin's root path share one key.
func RequestKey(req *http.Request) string {
	return req.Method + " " + requestURL(req)
}

func requestURL(req *http.Request) string {
	u := *req.URL
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String()
}

// NewCachedResponse reads res fully into a CachedResponse and gives res a
// fresh body with the same bytes, so the caller can still consume it.
func NewCachedResponse(req *http.Request, res *http.Response, now time.Time) (*CachedResponse, error) {
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	res.Body = io.NopCloser(bytes.NewReader(body))

	return &CachedResponse{
		Method:     req.Method,
		URL:        requestURL(req),
		StatusCode: res.StatusCode,
		Headers:    res.Header.Clone(),
		Body:       body,
		Timestamp:  now,
	}, nil
}

// Response rebuilds an *http.Response answering req.
func (c *CachedResponse) Response(req *http.Request) *http.Response {
	h := c.Headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(CachedHeader, "hit")
	h.Set("Content-Length", strconv.Itoa(len(c.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.StatusCode, http.StatusText(c.StatusCode)),
		StatusCode:    c.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}
