// Package devserver serves the front-end files from a directory for local
// testing.
package devserver

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AnandSundar/go-fincache/internal/logging"
	"github.com/AnandSundar/go-fincache/locale"
)

// Index is served for the root path.
const Index = "index.html"

var mimeTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".js":          "application/javascript; charset=utf-8",
	".json":        "application/json",
	".webmanifest": "application/manifest+json",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".svg":         "image/svg+xml",
	".ico":         "image/x-icon",
	".woff2":       "font/woff2",
}

// ContentType returns the MIME type for name by extension, falling back to
// application/octet-stream.
func ContentType(name string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Config contains the server configuration.
type Config struct {
	Port string
	// Root is the directory files are served from.
	Root   string
	Logger logging.Logger
}

// Server maps URL paths to files under Root.
type Server struct {
	cfg    Config
	router *chi.Mux
	logger logging.Logger
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: cfg.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/*", s.handleFile)

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := s.resolve(r.URL.Path)
	data, err := os.ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.fail(w, r, http.StatusNotFound, "http.not_found")
		return
	case err != nil:
		s.logger.Errorf("devserver: read %s: %v", name, err)
		s.fail(w, r, http.StatusInternalServerError, "http.server_error")
		return
	}

	w.Header().Set("Content-Type", ContentType(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// resolve maps a URL path to a file under Root. Cleaning against "/" keeps
// ".." segments from leaving Root.
func (s *Server) resolve(urlPath string) string {
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/" + Index
	}
	return filepath.Join(s.cfg.Root, filepath.FromSlash(clean))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, key string) {
	lang := locale.Match(r.Header.Get("Accept-Language"))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(locale.T(lang, key)))
}
