// Package api exposes the storage operations over HTTP for the UI layer.
// Every response body is the storage result envelope; callers never assume
// success from the status code alone.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardbox/cardbox/internal/logbuf"
	"github.com/cardbox/cardbox/internal/storage"
)

// Deps holds all dependencies required to build the router.
type Deps struct {
	Store storage.CardStorage
	Log   *logbuf.Log
}

// NewRouter creates the application router: the card API under /api/v1,
// plus /healthz and /metrics.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentType)
		registerCardRoutes(r, deps.Store)
		registerLogRoutes(r, deps.Log)
	})

	return r
}

// jsonContentType sets Content-Type: application/json on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
