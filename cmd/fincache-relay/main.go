// Command fincache-relay forwards browser requests to the backend and adds
// CORS headers.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/AnandSundar/go-fincache/metrics"
	"github.com/AnandSundar/go-fincache/relay"
)

func main() {
	debug := flag.Bool("debug", false, "use debug mode")
	flag.Parse()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if *debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}
	e.Logger.SetPrefix("FINCACHE-RELAY")

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		e.Logger.Fatal("UPSTREAM_URL is required")
	}

	m := metrics.New("fincache")
	r, err := relay.New(upstream,
		relay.WithLogger(e.Logger),
		relay.WithMetrics(m),
	)
	if err != nil {
		e.Logger.Fatal(err)
	}
	r.Register(e)

	if addr := os.Getenv("METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			e.Logger.Infof("metrics on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				e.Logger.Error(err)
			}
		}()
	}

	port := getEnvInt("PORT", 8787)
	e.Logger.Infof("relaying to %s", upstream)
	if err := e.Start(fmt.Sprintf("0.0.0.0:%d", port)); err != nil {
		e.Logger.Error(err)
	}
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
