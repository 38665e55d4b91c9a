package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many export requests")
		}),
	)
	r.With(h.rbac.RequirePermission("audit_logs", rbac.ActionRead)).Get("/", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.RequirePermission("audit_logs", rbac.ActionExport))
		gr.Use(limiter)
		gr.Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if id := rbac.IdentityFromContext(r.Context()); id != nil && id.Subject != "" {
		return "user:" + id.Subject, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
