/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the SPA front end

ROUTE GROUPS:
  /api/visits/*     Visit CRUD
  /api/workdays/*   Ledger views, statistics, day closing
  /api/cep/*        Postal code lookup
  /health           Liveness

ROUTE ORDER:
  /workdays/statistics is registered before /workdays/{date} so the
  literal segment is not swallowed by the date parameter.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Visit routes
		r.Route("/visits", func(r chi.Router) {
			r.Get("/", h.ListVisits)
			r.Post("/", h.CreateVisit)
			r.Put("/{id}", h.UpdateVisit)
			r.Delete("/{id}", h.DeleteVisit)
		})

		// Workday routes
		r.Route("/workdays", func(r chi.Router) {
			r.Get("/", h.ListWorkdays)
			r.Get("/statistics", h.Statistics)
			r.Post("/close", h.CloseWorkday)
			r.Get("/{date}", h.GetWorkday)
		})

		// CEP routes
		r.Route("/cep", func(r chi.Router) {
			r.Get("/{code}", h.LookupCEP)
		})
	})

	r.Get("/health", h.Health)

	return r
}
