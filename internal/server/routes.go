package server

import (
	"log/slog"
	"net/http"

	"github.com/maauso/tubely-api/internal/auth"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// AssetsRoot is the directory served under /assets/. Empty disables it.
	AssetsRoot string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, validator auth.Validator, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()
	authed := AuthMiddleware(validator, logger)

	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("POST /api/videos", authed(http.HandlerFunc(h.CreateVideo)))
	mux.Handle("GET /api/videos", authed(http.HandlerFunc(h.ListVideos)))
	mux.Handle("GET /api/videos/{videoID}", authed(http.HandlerFunc(h.GetVideo)))
	mux.Handle("POST /api/video_upload/{videoID}", authed(http.HandlerFunc(h.UploadVideo)))
	mux.Handle("POST /api/thumbnail_upload/{videoID}", authed(http.HandlerFunc(h.UploadThumbnail)))

	if cfg.AssetsRoot != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(cfg.AssetsRoot))))
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
