package api

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{AllowedOrigins: []string{"*"}}
}

// NewRouter creates a new HTTP router with all routes configured, using
// Go 1.22+ ServeMux method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/active", h.ListActive)
	mux.HandleFunc("GET /jobs/completed", h.ListCompleted)
	mux.HandleFunc("GET /jobs/failed", h.ListFailed)
	mux.HandleFunc("GET /jobs/dead-letter", h.ListDeadLetter)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/events", h.Events)
	mux.HandleFunc("POST /jobs/{id}/pause", h.Pause)
	mux.HandleFunc("POST /jobs/{id}/resume", h.Resume)
	mux.HandleFunc("POST /jobs/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /jobs/{id}/retry", h.Retry)
	mux.HandleFunc("DELETE /jobs/{id}", h.DeleteJob)

	mux.HandleFunc("POST /queue/start", h.StartQueue)
	mux.HandleFunc("POST /queue/stop", h.StopQueue)

	mux.HandleFunc("GET /stats", h.Stats)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
