// Package apiclient is the finance tracker backend client. It injects auth
// headers, normalizes error responses and routes every call through a
// request coalescer so identical concurrent calls hit the network once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AnandSundar/go-fincache/coalesce"
	"github.com/AnandSundar/go-fincache/internal/logging"
	"github.com/AnandSundar/go-fincache/ttlcache"
)

// SuccessMarker is what Call returns for a 204 No Content response.
var SuccessMarker = json.RawMessage(`{"success":true}`)

// Request describes one backend call.
type Request struct {
	Method string
	// Path is relative to the client's base URL, e.g. "/workspaces".
	Path  string
	Query url.Values
	// Body is marshalled to JSON when not nil.
	Body any
	// Exclusive calls are never coalesced with other calls.
	Exclusive bool
}

// Response is the settled result of a network call, shared by every
// coalesced caller. Callers must not modify it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a backend API client. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenStore
	cache     *ttlcache.Cache
	flights   *coalesce.Group[*Response]
	logger    logging.Logger
	userAgent string

	mu    sync.RWMutex
	token string
}

// New returns a client for the API rooted at baseURL (for example
// "https://app.example.com/api/v1"). A token saved in the token store is
// restored.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		logger:    logging.Discard(),
		userAgent: "fincache-apiclient/1",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.flights == nil {
		c.flights = coalesce.New[*Response]()
	}

	if c.tokens != nil {
		token, err := c.tokens.Load()
		if err != nil {
			c.logger.Warnf("apiclient: load token: %v", err)
		}
		c.token = token
	}
	return c
}

// SetToken sets the bearer token and persists it.
func (c *Client) SetToken(token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if c.tokens == nil {
		return nil
	}
	if err := c.tokens.Save(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// ClearToken forgets the bearer token in memory and in the token store.
func (c *Client) ClearToken() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if c.tokens == nil {
		return nil
	}
	if err := c.tokens.Clear(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Token returns the current bearer token, "" when unauthenticated.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a token is set.
func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

// Call performs r and returns the raw JSON body. A 204 response yields
// SuccessMarker. A non-2xx response yields an *Error. Nothing is retried.
func (c *Client) Call(ctx context.Context, r Request) (json.RawMessage, error) {
	fullURL := c.url(r.Path, r.Query)

	var body []byte
	if r.Body != nil {
		var err error
		body, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.Method, r.Path, err)
		}
	}

	send := func(ctx context.Context) (*Response, error) {
		return c.send(ctx, r.Method, fullURL, body)
	}

	var (
		res *Response
		err error
	)
	if r.Exclusive {
		res, err = c.flights.Exclusive(ctx, send)
	} else {
		res, _, err = c.flights.Do(ctx, coalesce.Key(r.Method, fullURL, body), send)
	}
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusNoContent {
		return SuccessMarker, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, parseError(res.StatusCode, res.Body)
	}
	// res is shared by every coalesced caller; each gets its own copy.
	return json.RawMessage(bytes.Clone(res.Body)), nil
}

// Do performs r and decodes the JSON response into out, which may be nil.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	raw, err := c.Call(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.Path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, fullURL string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnf("apiclient: %s %s: %v", method, fullURL, err)
		return nil, fmt.Errorf("%s %s: %w", method, fullURL, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, fullURL, err)
	}
	c.logger.Debugf("apiclient: %s %s -> %d (%s)", method, fullURL, res.StatusCode, time.Since(start))

	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
