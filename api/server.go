/*
server.go - Admin HTTP router

ROUTES:
  GET  /api/health        Liveness probe
  GET  /api/runs          Run history (most recent first, ?limit=N)
  POST /api/runs/trigger  Start a reconciliation run now

No authentication; the admin port is expected to be firewalled to the
operations network.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the admin router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/trigger", h.TriggerRun)
		})
	})

	return r
}
