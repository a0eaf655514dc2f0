/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/clients/*         Client management
  /api/workpackages/*    Work packages, periods, ledger, activity, reports
  /api/reports           Batch dashboard report
  /api/reconciliation/*  Run history and manual trigger
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, reconciler *Reconciler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
		})

		// Work package routes
		r.Route("/workpackages", func(r chi.Router) {
			r.Get("/", h.ListWorkPackages)
			r.Post("/", h.CreateWorkPackage)
			r.Get("/{id}", h.GetWorkPackage)
			r.Get("/{id}/report", h.GetReport)
			r.Get("/{id}/periods", h.ListPeriods)
			r.Post("/{id}/periods", h.CreatePeriod)
			r.Get("/{id}/regularizations", h.ListRegularizations)
			r.Post("/{id}/regularizations", h.CreateRegularization)
			r.Post("/{id}/tickets", h.AddTickets)
			r.Put("/{id}/metrics", h.UpsertMetric)
		})

		// Batch report route
		r.Get("/reports", h.GetReports)

		// Reconciliation routes
		r.Route("/reconciliation", func(r chi.Router) {
			r.Get("/runs", h.ListReconciliationRuns)
			if reconciler != nil {
				r.Post("/process", func(w http.ResponseWriter, req *http.Request) {
					reconciler.RunNow()
					writeJSON(w, http.StatusOK, map[string]string{"status": "triggered"})
				})
			}
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
