/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the desktop/web frontend

ROUTE GROUPS:
  /api/dashboard, /api/reports/*   Read-only aggregates
  /api/categories/*                Category management
  /api/assets/*                    Asset management
  /api/import, /api/export/*       Spreadsheet exchange
  /api/schedules/*                 Consistency checks
  /api/scenarios/*                 Demo portfolios

SECURITY NOTE:
  No authentication middleware. The server binds to loopback by default
  and is meant to back a single-user desktop frontend.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/abacus/serve.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  requestLog{h.log},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/reports/annual-summary", h.GetAnnualSummary)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Get("/counts", h.ListCategoriesWithCounts)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
			r.Post("/{id}/reassign", h.ReassignCategory)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Put("/{id}", h.UpdateAsset)
			r.Delete("/{id}", h.DeleteAsset)
			r.Post("/{id}/dispose", h.DisposeAsset)
			r.Get("/{id}/valuation", h.GetValuation)
		})

		r.Post("/import", h.ImportAssets)
		r.Route("/export", func(r chi.Router) {
			r.Get("/template", h.ExportTemplate)
			r.Get("/report", h.ExportReport)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/verify", h.VerifySchedules)
			r.Post("/resync", h.ResyncSchedules)
			r.Get("/audit", h.GetAudit)
			r.Post("/audit", h.RunAudit)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLog adapts logrus to chi's LoggerInterface.
type requestLog struct {
	log logrus.FieldLogger
}

func (l requestLog) Print(v ...interface{}) {
	l.log.Info(v...)
}
