// Command fincache-static serves the front-end from a directory for local
// testing.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/AnandSundar/go-fincache/devserver"
	"github.com/AnandSundar/go-fincache/internal/logging"
)

func main() {
	debug := flag.Bool("debug", false, "use debug mode")
	flag.Parse()

	logger := logging.New("FINCACHE-STATIC", *debug)
	cfg := devserver.Config{
		Port:   getEnv("PORT", "3000"),
		Root:   getEnv("ROOT", "."),
		Logger: logger,
	}
	if _, err := os.Stat(cfg.Root); err != nil {
		logger.Fatalf("root %s: %v", cfg.Root, err)
	}

	srv := devserver.New(cfg)
	logger.Infof("serving %s on :%s", cfg.Root, cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
