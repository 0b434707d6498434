package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/pages"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/reports"
	"github.com/meridian-hq/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	AuthMiddleware auth.Middleware
	ReportsHandler *reports.Handler
	PagesHandler   *pages.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics

	// AuthIPLimiter is the pre-authentication budget for the issuance
	// endpoints, keyed by hashed client IP.
	AuthIPLimiter func(http.Handler) http.Handler
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", func(ar chi.Router) {
			params.AuthHandler.MountRoutes(ar, params.AuthIPLimiter, params.AuthMiddleware.Authenticate)
		})
	}

	if params.ReportsHandler != nil {
		r.Route("/reports", func(rr chi.Router) {
			params.ReportsHandler.MountRoutes(rr, params.AuthMiddleware.Authenticate, params.AuthMiddleware.RequirePermission)
		})
	}

	if params.PagesHandler != nil {
		r.Route("/pages", func(pr chi.Router) {
			params.PagesHandler.MountRoutes(pr, params.AuthMiddleware.Authenticate, params.AuthMiddleware.RequirePermission)
		})
	}

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			jr.Use(params.AuthMiddleware.Authenticate)
			jr.Use(params.AuthMiddleware.RequireRole(rbac.RoleSuperAdmin))
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}
