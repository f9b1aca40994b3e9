/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Actor:      Bearer token or development headers -> leave.Actor

ROUTE GROUPS:
  /api/leaves/*         Request lifecycle
  /api/entitlements/*   Entitlement summaries
  /api/admin/*          Admin operations
  /api/holidays         Tenant holiday table
  /api/scenarios/*      Demo scenarios (only when a Resetter is configured)
  /healthz              Store health

SEE ALSO:
  - handlers.go: Handler implementations
  - actor.go: Identity middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// JWTSecret enables HS256 bearer tokens.
	JWTSecret string
	// AllowHeaderAuth trusts X-User-ID/X-Tenant-ID/X-Role. Development only.
	AllowHeaderAuth bool
	CORSOrigins     []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	// Credentials are never combined with a wildcard origin.
	credentials := !slices.Contains(origins, "*")

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Tenant-ID", "X-Role"},
		AllowCredentials: credentials,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware(opts.JWTSecret, opts.AllowHeaderAuth))

		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.SubmitLeave)
			r.Get("/preview", h.PreviewLeave)
			r.Get("/me", h.ListMyLeaves)
			r.Get("/approvals", h.ListApprovals)
			r.Get("/calendar", h.Calendar)
			r.Post("/{id}/approve", h.ApproveLeave)
			r.Post("/{id}/reject", h.RejectLeave)
			r.Post("/{id}/request-cancel", h.RequestCancelLeave)
			r.Get("/{id}/audit", h.LeaveAudit)
			r.Delete("/{id}", h.WithdrawLeave)
		})

		r.Get("/entitlements/{user}", h.GetEntitlement)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Put("/entitlements/{user}", h.UpdateEntitlement)
			r.Post("/rollover", h.TriggerRollover)
		})

		r.Get("/holidays", h.GetHolidays)
		r.Put("/holidays", h.PutHolidays)

		if h.Resetter != nil {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
