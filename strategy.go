package fincache

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AnandSundar/go-fincache/locale"
)

// networkFirstShell fetches app shell resources fresh every time. The stored
// copy is only used when the network cannot be reached at all; an error
// status from the server is returned as is.
func (w *Worker) networkFirstShell(req *http.Request) *http.Response {
	netReq := req.Clone(req.Context())
	netReq.Header.Set("Cache-Control", "no-cache")
	netReq.Header.Set("Pragma", "no-cache")

	res, err := w.transport.RoundTrip(netReq)
	if err == nil && isSuccess(res.StatusCode) {
		err = w.store(req, res, w.RuntimeCacheName())
	}
	if err == nil {
		w.metrics.Served(NetworkFirstShell.String(), "network")
		return res
	}

	w.logger.Warnf("shell %s: network failed: %v", req.URL, err)
	return w.fallback(req, NetworkFirstShell)
}

// networkFirstAPI fetches backend calls from the network and stores only
// successful responses. On transport failure the last stored response for
// the identical request is served, else a synthesized 503.
func (w *Worker) networkFirstAPI(req *http.Request) *http.Response {
	res, err := w.transport.RoundTrip(req)
	if err == nil && isSuccess(res.StatusCode) {
		err = w.store(req, res, w.RuntimeCacheName())
	}
	if err == nil {
		w.metrics.Served(NetworkFirstAPI.String(), "network")
		return res
	}

	w.logger.Warnf("api %s: network failed: %v", req.URL, err)
	if cached, ok := w.match(req.Context(), RequestKey(req)); ok {
		w.metrics.Served(NetworkFirstAPI.String(), "cache")
		return cached.Response(req)
	}
	w.metrics.Served(NetworkFirstAPI.String(), "offline")
	return offlineAPIResponse(req)
}

// cacheFirst serves static assets from the cache and learns misses into the
// runtime cache.
func (w *Worker) cacheFirst(req *http.Request) *http.Response {
	if cached, ok := w.match(req.Context(), RequestKey(req)); ok {
		w.metrics.Served(CacheFirst.String(), "cache")
		return cached.Response(req)
	}

	res, err := w.transport.RoundTrip(req)
	if err == nil && isSuccess(res.StatusCode) {
		err = w.store(req, res, w.RuntimeCacheName())
	}
	if err == nil {
		w.metrics.Served(CacheFirst.String(), "network")
		return res
	}

	w.logger.Warnf("static %s: network failed: %v", req.URL, err)
	return w.fallback(req, CacheFirst)
}

// fallback answers a request whose network attempt failed: the stored copy,
// then the app entry point for navigations, then a 503.
func (w *Worker) fallback(req *http.Request, s Strategy) *http.Response {
	if cached, ok := w.match(req.Context(), RequestKey(req)); ok {
		w.metrics.Served(s.String(), "cache")
		return cached.Response(req)
	}

	if isNavigation(req) {
		entry := w.origin.ResolveReference(&url.URL{Path: w.cfg.EntryPoint})
		if cached, ok := w.match(req.Context(), http.MethodGet+" "+entry.String()); ok {
			w.metrics.Served(s.String(), "cache")
			return cached.Response(req)
		}
	}

	w.metrics.Served(s.String(), "offline")
	lang := locale.Match(req.Header.Get("Accept-Language"))
	return synthesize(req, http.StatusServiceUnavailable, "text/plain; charset=utf-8",
		[]byte(locale.T(lang, "offline.unavailable")))
}

type offlineBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Offline bool   `json:"offline"`
}

func offlineAPIResponse(req *http.Request) *http.Response {
	lang := locale.Match(req.Header.Get("Accept-Language"))
	body, _ := json.Marshal(offlineBody{
		Error:   locale.T(lang, "offline.error"),
		Message: locale.T(lang, "offline.message"),
		Offline: true,
	})
	return synthesize(req, http.StatusServiceUnavailable, "application/json", body)
}

func synthesize(req *http.Request, status int, contentType string, body []byte) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set(CachedHeader, "offline")

	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
