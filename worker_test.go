package fincache_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AnandSundar/go-fincache"
	"github.com/AnandSundar/go-fincache/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrecache = []string{"/", "/index.html", "/js/app.js", "/css/styles.css", "/img/logo.png"}

type origin struct {
	*httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
	header map[string]http.Header
}

func newOrigin(t *testing.T) *origin {
	o := &origin{hits: map[string]int{}, status: map[string]int{}, header: map[string]http.Header{}}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.URL.Path]++
		status, ok := o.status[r.URL.Path]
		o.header[r.URL.Path] = r.Header.Clone()
		o.mu.Unlock()

		if !ok {
			status = http.StatusOK
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"path":"` + r.URL.Path + `","query":"` + r.URL.RawQuery + `"}`))
			return
		}
		w.WriteHeader(status)
		w.Write([]byte("asset " + r.URL.Path))
	}))
	t.Cleanup(o.Close)
	return o
}

func (o *origin) setStatus(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status[path] = status
}

func (o *origin) hitCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *origin) lastHeader(path string) http.Header {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.header[path]
}

func newWorker(t *testing.T, o *origin, s fincache.Storage, opts ...fincache.Option) *fincache.Worker {
	opts = append([]fincache.Option{fincache.WithPrecache(testPrecache...)}, opts...)
	w, err := fincache.New(s, o.URL, opts...)
	require.NoError(t, err)
	return w
}

func installedWorker(t *testing.T, o *origin, s fincache.Storage, opts ...fincache.Option) *fincache.Worker {
	w := newWorker(t, o, s, opts...)
	require.NoError(t, w.Install(context.Background()))
	require.Equal(t, fincache.StateActive, w.State())
	return w
}

func get(t *testing.T, w *fincache.Worker, url string, headers ...string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := w.RoundTrip(req)
	require.NoError(t, err)
	return res
}

func readBody(t *testing.T, res *http.Response) string {
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestWorker_InstallPrecachesManifest(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	w := installedWorker(t, o, s)

	keys, err := s.Keys(context.Background(), w.StaticCacheName())
	require.NoError(t, err)
	assert.Len(t, keys, len(testPrecache))

	// Network disabled: every manifest asset is still served.
	o.Close()
	for _, p := range testPrecache {
		res := get(t, w, o.URL+p)
		assert.Equal(t, http.StatusOK, res.StatusCode, p)
		assert.Equal(t, "asset "+p, readBody(t, res), p)
		assert.Equal(t, "hit", res.Header.Get(fincache.CachedHeader), p)
	}
}

func TestWorker_InstallFailsAtomically(t *testing.T) {
	o := newOrigin(t)
	o.setStatus("/css/styles.css", http.StatusNotFound)
	s := store.NewMemoryStore()
	w := newWorker(t, o, s)

	err := w.Install(context.Background())

	assert.ErrorIs(t, err, fincache.ErrPrecache)
	assert.Equal(t, fincache.StateFailed, w.State())
	names, _ := s.Names(context.Background())
	assert.Empty(t, names)
}

func TestWorker_InstallTwice(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())

	assert.ErrorIs(t, w.Install(context.Background()), fincache.ErrAlreadyInstalled)
}

func TestWorker_ActivationDeletesOtherGenerations(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	ctx := context.Background()

	old := &fincache.CachedResponse{StatusCode: 200}
	for _, name := range []string{"fintrack-static-v1", "fintrack-runtime-v1", "unrelated", "fintrack-runtime-v2"} {
		require.NoError(t, s.Put(ctx, name, "GET /x", old))
	}

	w := installedWorker(t, o, s, fincache.WithVersion("v2"))

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fintrack-runtime-v2", "fintrack-static-v2"}, names)
	assert.Equal(t, "fintrack-static-v2", w.StaticCacheName())

	// The surviving runtime cache keeps its contents.
	_, err = s.Match(ctx, "fintrack-runtime-v2", "GET /x")
	assert.NoError(t, err)
}

func TestWorker_WaitsForActivate(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "fintrack-static-v0", "GET /x", &fincache.CachedResponse{StatusCode: 200}))

	w := newWorker(t, o, s, fincache.WithSkipWaiting(false))
	require.NoError(t, w.Install(ctx))
	assert.Equal(t, fincache.StateActivating, w.State())

	// Still waiting: old generations survive and requests pass through.
	names, _ := s.Names(ctx)
	assert.Contains(t, names, "fintrack-static-v0")
	hits := o.hitCount("/js/app.js")
	res := get(t, w, o.URL+"/js/app.js")
	readBody(t, res)
	assert.Empty(t, res.Header.Get(fincache.CachedHeader))
	assert.Equal(t, hits+1, o.hitCount("/js/app.js"))

	require.NoError(t, w.Activate(ctx))
	assert.Equal(t, fincache.StateActive, w.State())
	names, _ = s.Names(ctx)
	assert.NotContains(t, names, "fintrack-static-v0")

	assert.ErrorIs(t, w.Activate(ctx), fincache.ErrNotActivating)
}

func TestWorker_ActivateBeforeInstall(t *testing.T) {
	o := newOrigin(t)
	w := newWorker(t, o, store.NewMemoryStore())

	assert.ErrorIs(t, w.Activate(context.Background()), fincache.ErrNotActivating)
	assert.Equal(t, fincache.StateNew, w.State())
}

func TestWorker_Start(t *testing.T) {
	for _, skip := range []bool{true, false} {
		o := newOrigin(t)
		w := newWorker(t, o, store.NewMemoryStore(), fincache.WithSkipWaiting(skip))

		require.NoError(t, w.Start(context.Background()))
		assert.Equal(t, fincache.StateActive, w.State(), "skip waiting %v", skip)
	}
}

func TestWorker_StartFailsWhenPrecacheFails(t *testing.T) {
	o := newOrigin(t)
	o.setStatus("/index.html", http.StatusInternalServerError)
	w := newWorker(t, o, store.NewMemoryStore())

	assert.ErrorIs(t, w.Start(context.Background()), fincache.ErrPrecache)
	assert.Equal(t, fincache.StateFailed, w.State())
}

func TestWorker_BareOriginServedFromPrecache(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	o.Close()

	for _, u := range []string{o.URL + "/", o.URL} {
		res := get(t, w, u)
		assert.Equal(t, http.StatusOK, res.StatusCode, u)
		assert.Equal(t, "asset /", readBody(t, res), u)
		assert.Equal(t, "hit", res.Header.Get(fincache.CachedHeader), u)
	}
}

func TestRequestKey_BareOriginIsRoot(t *testing.T) {
	bare, err := http.NewRequest(http.MethodGet, "http://app.example.com", nil)
	require.NoError(t, err)
	root, err := http.NewRequest(http.MethodGet, "http://app.example.com/", nil)
	require.NoError(t, err)

	assert.Equal(t, "GET http://app.example.com/", fincache.RequestKey(bare))
	assert.Equal(t, fincache.RequestKey(root), fincache.RequestKey(bare))
	assert.Equal(t, "", bare.URL.Path)
}

func TestWorker_PassesThroughBeforeInstall(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	w := newWorker(t, o, s)

	res := get(t, w, o.URL+"/api/v1/workspaces")
	readBody(t, res)

	names, _ := s.Names(context.Background())
	assert.Empty(t, names)
}

func TestWorker_APIFallsBackToCachedResponse(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())

	online := get(t, w, o.URL+"/api/v1/workspaces?limit=5")
	require.Equal(t, http.StatusOK, online.StatusCode)
	onlineBody := readBody(t, online)

	o.Close()

	offline := get(t, w, o.URL+"/api/v1/workspaces?limit=5")
	assert.Equal(t, http.StatusOK, offline.StatusCode)
	assert.Equal(t, onlineBody, readBody(t, offline))
	assert.Equal(t, "hit", offline.Header.Get(fincache.CachedHeader))
	assert.Equal(t, "application/json", offline.Header.Get("Content-Type"))
}

func TestWorker_APIOfflineWithoutCacheIs503(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	o.Close()

	res := get(t, w, o.URL+"/api/v1/budgets", "Accept-Language", "ru-RU")

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(readBody(t, res)), &body))
	assert.Equal(t, "offline", body["error"])
	assert.Equal(t, true, body["offline"])
	assert.Contains(t, body["message"], "Нет соединения")
}

func TestWorker_APIErrorStatusNotCached(t *testing.T) {
	o := newOrigin(t)
	o.setStatus("/api/v1/goals", http.StatusInternalServerError)
	w := installedWorker(t, o, store.NewMemoryStore())

	res := get(t, w, o.URL+"/api/v1/goals")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	readBody(t, res)

	o.Close()
	res = get(t, w, o.URL+"/api/v1/goals")
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestWorker_NonGETPassesThrough(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	w := installedWorker(t, o, s)

	req, err := http.NewRequest(http.MethodPost, o.URL+"/api/v1/transactions", strings.NewReader(`{}`))
	require.NoError(t, err)
	res, err := w.RoundTrip(req)
	require.NoError(t, err)
	readBody(t, res)

	keys, _ := s.Keys(context.Background(), w.RuntimeCacheName())
	assert.Empty(t, keys)

	o.Close()
	req, err = http.NewRequest(http.MethodPost, o.URL+"/api/v1/transactions", strings.NewReader(`{}`))
	require.NoError(t, err)
	_, err = w.RoundTrip(req)
	assert.Error(t, err, "non-GET requests are not intercepted")
}

func TestWorker_ShellIsNetworkFirst(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	before := o.hitCount("/js/app.js")

	res := get(t, w, o.URL+"/js/app.js")
	readBody(t, res)

	assert.Equal(t, before+1, o.hitCount("/js/app.js"))
	assert.Equal(t, "no-cache", o.lastHeader("/js/app.js").Get("Cache-Control"))
	assert.Empty(t, res.Header.Get(fincache.CachedHeader))
}

func TestWorker_ShellErrorStatusReturnedAsIs(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	o.setStatus("/index.html", http.StatusBadGateway)

	res := get(t, w, o.URL+"/index.html")

	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	readBody(t, res)
}

func TestWorker_CacheFirstServesStoredCopy(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	before := o.hitCount("/img/logo.png")

	res := get(t, w, o.URL+"/img/logo.png")

	assert.Equal(t, "hit", res.Header.Get(fincache.CachedHeader))
	assert.Equal(t, "asset /img/logo.png", readBody(t, res))
	assert.Equal(t, before, o.hitCount("/img/logo.png"))
}

func TestWorker_CacheFirstLearnsMisses(t *testing.T) {
	o := newOrigin(t)
	s := store.NewMemoryStore()
	w := installedWorker(t, o, s)

	res := get(t, w, o.URL+"/img/icon.svg")
	assert.Equal(t, "asset /img/icon.svg", readBody(t, res))

	res = get(t, w, o.URL+"/img/icon.svg")
	assert.Equal(t, "hit", res.Header.Get(fincache.CachedHeader))
	readBody(t, res)
	assert.Equal(t, 1, o.hitCount("/img/icon.svg"))
}

func TestWorker_NavigationFallsBackToEntryPoint(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	o.Close()

	res := get(t, w, o.URL+"/reports", "Accept", "text/html,application/xhtml+xml")

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "asset /index.html", readBody(t, res))
}

func TestWorker_OfflineStaticWithoutCacheIs503(t *testing.T) {
	o := newOrigin(t)
	w := installedWorker(t, o, store.NewMemoryStore())
	o.Close()

	res := get(t, w, o.URL+"/img/unknown.png")

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "offline", res.Header.Get(fincache.CachedHeader))
	readBody(t, res)
}

func TestWorker_ForeignHosts(t *testing.T) {
	o := newOrigin(t)
	cdn := newOrigin(t)
	s := store.NewMemoryStore()
	w := installedWorker(t, o, s, fincache.WithExternalHosts("127.0.0.1"))

	// Both test servers listen on 127.0.0.1, so the CDN counts as allow-listed.
	res := get(t, w, cdn.URL+"/telegram-web-app.js")
	readBody(t, res)
	res = get(t, w, cdn.URL+"/telegram-web-app.js")
	readBody(t, res)

	assert.Equal(t, 1, cdn.hitCount("/telegram-web-app.js"))
}

type servedCounter struct {
	mu     sync.Mutex
	events map[string]int
}

func (c *servedCounter) Served(strategy, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[strategy+"/"+source]++
}

func TestWorker_Metrics(t *testing.T) {
	o := newOrigin(t)
	m := &servedCounter{events: map[string]int{}}
	w := installedWorker(t, o, store.NewMemoryStore(), fincache.WithMetrics(m))

	readBody(t, get(t, w, o.URL+"/api/v1/me"))
	readBody(t, get(t, w, o.URL+"/img/logo.png"))
	o.Close()
	readBody(t, get(t, w, o.URL+"/api/v1/me"))
	readBody(t, get(t, w, o.URL+"/api/v1/other"))

	assert.Equal(t, 1, m.events["api/network"])
	assert.Equal(t, 1, m.events["api/cache"])
	assert.Equal(t, 1, m.events["api/offline"])
	assert.Equal(t, 1, m.events["static/cache"])
}

func TestClassify(t *testing.T) {
	w, err := fincache.New(store.NewMemoryStore(), "https://app.example.com",
		fincache.WithExternalHosts("telegram.org", "cdn.jsdelivr.net"),
		fincache.WithAPIHosts("api.example.com"))
	require.NoError(t, err)

	tests := []struct {
		method string
		url    string
		want   fincache.Strategy
	}{
		{http.MethodGet, "https://app.example.com/", fincache.NetworkFirstShell},
		{http.MethodGet, "https://app.example.com/index.html", fincache.NetworkFirstShell},
		{http.MethodGet, "https://app.example.com/css/styles.css", fincache.NetworkFirstShell},
		{http.MethodGet, "https://app.example.com/js/app.js", fincache.NetworkFirstShell},
		{http.MethodGet, "https://app.example.com/api/v1/workspaces", fincache.NetworkFirstAPI},
		{http.MethodGet, "https://api.example.com/api/v1/workspaces", fincache.NetworkFirstAPI},
		{http.MethodGet, "https://app.example.com/img/logo.png", fincache.CacheFirst},
		{http.MethodGet, "https://telegram.org/js/telegram-web-app.js", fincache.CacheFirst},
		{http.MethodGet, "https://evil.example.org/x.js", fincache.PassThrough},
		{http.MethodGet, "https://api.example.com/health", fincache.PassThrough},
		{http.MethodPost, "https://app.example.com/api/v1/transactions", fincache.PassThrough},
		{http.MethodDelete, "https://app.example.com/img/logo.png", fincache.PassThrough},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.url, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			assert.Equal(t, tt.want, w.Classify(req))
		})
	}
}

func TestNew_RejectsRelativeOrigin(t *testing.T) {
	_, err := fincache.New(store.NewMemoryStore(), "/relative")
	assert.Error(t, err)
}

func TestReadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "v7",
		"precache": ["/", "/index.html"],
		"external_hosts": ["telegram.org"]
	}`), 0o600))

	m, err := fincache.ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "v7", m.Version)

	w, err := fincache.New(store.NewMemoryStore(), "https://app.example.com", m.Options()...)
	require.NoError(t, err)
	assert.Equal(t, "fintrack-static-v7", w.StaticCacheName())
	assert.Equal(t, "fintrack-runtime-v7", w.RuntimeCacheName())

	req := httptest.NewRequest(http.MethodGet, "https://telegram.org/js/telegram-web-app.js", nil)
	assert.Equal(t, fincache.CacheFirst, w.Classify(req))
}
