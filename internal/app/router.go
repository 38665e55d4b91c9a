package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dfashion/dfashion-api/internal/audit"
	audithttp "github.com/dfashion/dfashion-api/internal/audit/http"
	"github.com/dfashion/dfashion-api/internal/auth"
	"github.com/dfashion/dfashion-api/internal/observability"
	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/products"
	"github.com/dfashion/dfashion-api/internal/rbac"
	"github.com/dfashion/dfashion-api/internal/users"
	"github.com/dfashion/dfashion-api/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Auth           auth.Middleware
	RBACMiddleware rbac.Middleware
	AuditRecorder  *audit.Recorder
	Metrics        *observability.Metrics
	RequestLogging bool

	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	ProductsHandler *products.Handler
	AuditHandler    *audithttp.Handler
	PolicyHandler   *rbac.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.RequestLogging {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.OK(w, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.AuditRecorder.Middleware)

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.With(params.Auth.Optional).Route("/products", params.ProductsHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(params.Auth.Require)

			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			r.Route("/admin", func(r chi.Router) {
				if params.UsersHandler != nil {
					r.Route("/users", params.UsersHandler.MountAdminRoutes)
				}
				if params.PolicyHandler != nil {
					r.Route("/rbac", params.PolicyHandler.MountRoutes)
				}
				if params.AuditHandler != nil {
					r.Route("/audit-logs", params.AuditHandler.MountRoutes)
				}
				if params.JobHandler != nil {
					r.With(params.RBACMiddleware.RequireMinimumRole(rbac.RoleAdmin)).
						Route("/jobs", params.JobHandler.MountRoutes)
				}
			})
		})
	})

	return r
}
