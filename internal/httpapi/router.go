package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tempmon-server/internal/config"
)

// NewRouter returns the root router with the shared middleware chain and
// /healthz mounted. Feature modules register their routes on it.
func NewRouter(cfg config.Config, store Pinger, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	h := &healthcheckerImpl{store: store}
	r.Get("/healthz", h.handleHealthz)
	return r
}

func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
