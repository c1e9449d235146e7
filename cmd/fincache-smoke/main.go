// Command fincache-smoke runs a pass over the backend API through the full
// client stack: offline worker, coalescer and TTL cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnandSundar/go-fincache"
	"github.com/AnandSundar/go-fincache/apiclient"
	"github.com/AnandSundar/go-fincache/coalesce"
	"github.com/AnandSundar/go-fincache/internal/logging"
	"github.com/AnandSundar/go-fincache/locale"
	"github.com/AnandSundar/go-fincache/metrics"
	"github.com/AnandSundar/go-fincache/store"
	"github.com/AnandSundar/go-fincache/ttlcache"
)

func main() {
	debug := flag.Bool("debug", false, "use debug mode")
	manifestPath := flag.String("manifest", "", "offline worker manifest json file")
	flag.Parse()

	logger := logging.New("FINCACHE-SMOKE", *debug)
	if err := run(context.Background(), logger, *manifestPath); err != nil {
		logger.Fatal(err)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run(ctx context.Context, logger logging.Logger, manifestPath string) error {
	apiURL := getEnv("API_URL", "http://localhost:8000/api/v1")
	origin := getEnv("APP_ORIGIN", originOf(apiURL))
	lang := locale.Match(getEnv("LANG_PREF", "en"))

	var (
		storage fincache.Storage
		tokens  apiclient.TokenStore
	)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", addr, err)
		}
		defer client.Close()
		storage = store.NewRedisStore(client)
		tokens = store.NewRedisTokens(client, "smoke")
	} else {
		storage = store.NewMemoryStore()
		if path := os.Getenv("TOKEN_FILE"); path != "" {
			tokens = store.NewFileTokens(path)
		} else {
			tokens = store.NewMemoryTokens()
		}
	}

	m := metrics.New("fincache")
	opts := []fincache.Option{
		fincache.WithLogger(logger),
		fincache.WithMetrics(m),
		fincache.WithAPIHosts(hostOf(apiURL)),
	}
	if manifestPath != "" {
		manifest, err := fincache.ReadManifest(manifestPath)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		opts = append(opts, manifest.Options()...)
	}

	worker, err := fincache.New(storage, origin, opts...)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := worker.Start(ctx); err != nil {
		logger.Warnf("install failed, continuing without offline cache: %v", err)
	}
	fmt.Printf("worker %s, caches %s / %s\n", worker.State(), worker.StaticCacheName(), worker.RuntimeCacheName())

	cache := ttlcache.New(ttlcache.WithLogger(logger), ttlcache.WithMetrics(m))
	flights := coalesce.New[*apiclient.Response](coalesce.WithMetrics(m))
	client := apiclient.New(apiURL,
		apiclient.WithHTTPClient(&http.Client{Transport: worker, Timeout: 15 * time.Second}),
		apiclient.WithTokenStore(tokens),
		apiclient.WithCache(cache),
		apiclient.WithCoalescer(flights),
		apiclient.WithLogger(logger),
	)

	if initData := os.Getenv("INIT_DATA"); initData != "" {
		session, err := client.Login(ctx, initData)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Printf("logged in as %s (%d)\n", session.User.Username, session.User.ID)
	}

	if !client.Authenticated() {
		publicPass(ctx, client, lang)
		return nil
	}

	me, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("me: %w", err)
	}
	fmt.Printf("user %d %s\n", me.ID, me.FirstName)

	workspaces, err := client.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("workspaces: %w", err)
	}
	fmt.Printf("%d workspaces\n", len(workspaces))
	if len(workspaces) == 0 {
		return nil
	}

	wsID := workspaces[0].ID
	if v := getEnvInt("WORKSPACE_ID", 0); v > 0 {
		wsID = int64(v)
	}

	txs, err := client.Transactions(ctx, wsID, apiclient.TransactionFilter{Limit: 10})
	if err != nil {
		return fmt.Errorf("transactions: %w", err)
	}
	for _, tx := range txs {
		fmt.Printf("  %s %-10s %10.2f %s\n", tx.Date, locale.T(lang, "tx."+tx.Type), tx.Amount, tx.Description)
	}

	for i := 0; i < 2; i++ {
		s, err := client.Summary(ctx, wsID, "month")
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		fmt.Printf("%s (%s): %.2f\n", locale.T(lang, "summary.balance"), locale.T(lang, "summary.period.month"), s.Balance)
	}

	budgets, err := client.Budgets(ctx, wsID)
	if err != nil {
		logger.Warnf("budgets: %v", err)
	}
	for _, b := range budgets {
		if b.Spent > b.Amount {
			fmt.Println(locale.Tf(lang, "budget.exceeded", strconv.FormatFloat(b.Spent-b.Amount, 'f', 2, 64)))
		}
	}

	coalescePass(ctx, client)

	if dir := os.Getenv("EXPORT_DIR"); dir != "" {
		name, err := client.Export(ctx, wsID, apiclient.XLSX, apiclient.DirSaver{Dir: dir})
		if err != nil {
			logger.Errorf("export: %v", err)
		} else {
			fmt.Printf("exported %s\n", name)
		}
	}

	stats := cache.Stats()
	fmt.Printf("cache: %d entries, %d hits, %d misses, %.0f%% hit rate\n", stats.Size, stats.Hits, stats.Misses, stats.HitRate)
	return nil
}

// publicPass exercises the endpoints that work without a token.
func publicPass(ctx context.Context, client *apiclient.Client, lang string) {
	cats, err := client.Categories(ctx, 0)
	if err != nil {
		fmt.Printf("public categories: %v\n", err)
	} else {
		fmt.Printf("%d public categories\n", len(cats))
	}

	board, err := client.Leaderboard(ctx)
	if err != nil {
		fmt.Printf("public leaderboard: %v\n", err)
	} else {
		fmt.Printf("%d leaderboard entries\n", len(board))
	}

	_, err = client.Export(ctx, 0, apiclient.CSV, apiclient.DirSaver{Dir: os.TempDir()})
	switch {
	case errors.Is(err, apiclient.ErrNoToken):
		fmt.Println(locale.T(lang, "export.no_token"))
	case err != nil:
		fmt.Printf("export without token: %v\n", err)
	}
}

// coalescePass fires identical reads at once; the backend should see one.
func coalescePass(ctx context.Context, client *apiclient.Client) {
	const n = 5
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Workspaces(ctx); err != nil {
				fmt.Printf("coalesced read: %v\n", err)
			}
		}()
	}
	wg.Wait()
	fmt.Printf("%d concurrent reads in %s\n", n, time.Since(start).Round(time.Millisecond))
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
