// Package relay is the CORS relay in front of the backend. It forwards every
// request to one upstream unchanged and adds permissive cross-origin headers
// to the response.
package relay

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/AnandSundar/go-fincache/internal/logging"
	"github.com/AnandSundar/go-fincache/locale"
)

// PreflightMaxAge is how long browsers may cache a pre-flight answer.
const PreflightMaxAge = 86400

var corsHeaders = map[string]string{
	echo.HeaderAccessControlAllowOrigin:   "*",
	echo.HeaderAccessControlAllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	echo.HeaderAccessControlAllowHeaders:  "Content-Type, Authorization, X-Requested-With",
	echo.HeaderAccessControlExposeHeaders: "Content-Disposition",
}

// Metrics receives one event per relayed request.
type Metrics interface {
	Relayed(method string, status int)
}

type noopMetrics struct{}

func (noopMetrics) Relayed(string, int) {}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// Relay proxies to a single upstream.
type Relay struct {
	upstream *url.URL
	proxy    *httputil.ReverseProxy
	logger   logging.Logger
	metrics  Metrics
}

// New returns a relay forwarding to upstream, an absolute URL.
func New(upstream string, opts ...Option) (*Relay, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %q must be absolute", upstream)
	}

	r := &Relay{
		upstream: u,
		proxy:    httputil.NewSingleHostReverseProxy(u),
		logger:   logging.Discard(),
		metrics:  noopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.proxy.ModifyResponse = r.onResponse
	r.proxy.ErrorHandler = r.onError
	return r, nil
}

// Register routes every method and path of e to the relay.
func (r *Relay) Register(e *echo.Echo) {
	e.Any("/*", r.Handle)
}

// Handle answers pre-flight requests itself and proxies everything else.
func (r *Relay) Handle(c echo.Context) error {
	req := c.Request()
	if req.Method == http.MethodOptions {
		setCORS(c.Response().Header())
		c.Response().Header().Set(echo.HeaderAccessControlMaxAge, strconv.Itoa(PreflightMaxAge))
		r.metrics.Relayed(req.Method, http.StatusNoContent)
		return c.NoContent(http.StatusNoContent)
	}

	req.Host = r.upstream.Host
	r.proxy.ServeHTTP(c.Response(), req)
	return nil
}

func (r *Relay) onResponse(res *http.Response) error {
	setCORS(res.Header)
	r.metrics.Relayed(res.Request.Method, res.StatusCode)
	r.logger.Debugf("relay: %s %s -> %d", res.Request.Method, res.Request.URL.Path, res.StatusCode)
	return nil
}

func (r *Relay) onError(w http.ResponseWriter, req *http.Request, err error) {
	r.logger.Errorf("relay: %s %s: %v", req.Method, req.URL.Path, err)
	r.metrics.Relayed(req.Method, http.StatusBadGateway)

	lang := locale.Match(req.Header.Get("Accept-Language"))
	setCORS(w.Header())
	w.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	w.WriteHeader(http.StatusBadGateway)
	w.Write([]byte(locale.T(lang, "http.bad_gateway")))
}

func setCORS(h http.Header) {
	for k, v := range corsHeaders {
		h.Set(k, v)
	}
}
