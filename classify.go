package fincache

import (
	"net/http"
	"path"
	"slices"
	"strings"
)

// Strategy is how the worker answers a class of request.
type Strategy int

const (
	// PassThrough sends the request to the network untouched.
	PassThrough Strategy = iota
	// NetworkFirstShell always asks the network (bypassing HTTP caches) and
	// falls back to the stored copy on transport failure.
	NetworkFirstShell
	// NetworkFirstAPI asks the network, stores successes and falls back to
	// the stored copy or a synthesized 503.
	NetworkFirstAPI
	// CacheFirst serves the stored copy and only fetches on a miss.
	CacheFirst
)

func (s Strategy) String() string {
	switch s {
	case NetworkFirstShell:
		return "shell"
	case NetworkFirstAPI:
		return "api"
	case CacheFirst:
		return "static"
	default:
		return "passthrough"
	}
}

var shellExtensions = []string{".html", ".css", ".js"}

// Classify maps a request to the strategy that answers it.
func (w *Worker) Classify(req *http.Request) Strategy {
	if req.Method != http.MethodGet {
		return PassThrough
	}

	sameOrigin := req.URL.Scheme == w.origin.Scheme && req.URL.Host == w.origin.Host
	host := req.URL.Hostname()

	if strings.HasPrefix(req.URL.Path, w.cfg.APIPrefix) &&
		(sameOrigin || slices.Contains(w.cfg.APIHosts, host)) {
		return NetworkFirstAPI
	}

	if sameOrigin {
		if req.URL.Path == "" || req.URL.Path == "/" ||
			slices.Contains(shellExtensions, strings.ToLower(path.Ext(req.URL.Path))) {
			return NetworkFirstShell
		}
		return CacheFirst
	}

	if slices.Contains(w.cfg.ExternalHosts, host) {
		return CacheFirst
	}
	return PassThrough
}

func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}
