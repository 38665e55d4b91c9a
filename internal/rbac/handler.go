package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
)

// Handler exposes the loaded policy to administrators.
type Handler struct {
	logger *slog.Logger
	policy *Policy
	rbac   Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, policy *Policy, rbac Middleware) *Handler {
	return &Handler{logger: logger, policy: policy, rbac: rbac}
}

// MountRoutes registers policy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission("roles", ActionRead))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}/permissions", h.rolePermissions)
	})
}

type roleView struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.policy.Hierarchy.Roles()
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleView{Name: string(role), Rank: h.policy.RankOf(string(role))})
	}
	httpx.OK(w, out)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	if !h.policy.Hierarchy.Known(role) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.OK(w, map[string]any{
		"role":        role,
		"rank":        h.policy.RankOf(role),
		"permissions": h.policy.Grants(role),
	})
}
