package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers self-service routes under /users.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{userID}", func(r chi.Router) {
		r.Use(h.rbac.RequireOwnershipOrMinimumRole(rbac.OwnerFromURLParam("userID"), rbac.RoleAdmin))
		r.Get("/", h.getUser)
		r.With(h.rbac.AuditAction("user.profile.update", "users")).Patch("/", h.updateProfile)
	})
}

// MountAdminRoutes registers administrative routes under /admin/users.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.rbac.RequirePermission("users", rbac.ActionRead)).Get("/", h.listUsers)
	r.With(
		h.rbac.RequireMinimumRole(rbac.RoleAdmin),
		h.rbac.RequirePermission("users", rbac.ActionUpdate),
		h.rbac.AuditAction("user.role.update", "users"),
	).Patch("/{userID}/role", h.changeRole)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Role: rbac.Role(r.URL.Query().Get("role"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be a number")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", "offset must be a number")
			return
		}
		filter.Offset = offset
	}
	users, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.fail(w, "list users failed", err)
		return
	}
	httpx.OK(w, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var update ProfileUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(update); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), chi.URLParam(r, "userID"), update)
	if err != nil {
		h.fail(w, "update profile failed", err)
		return
	}
	httpx.OK(w, user)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var change RoleChange
	if err := httpx.DecodeJSON(r, &change); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(change); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	actor := rbac.IdentityFromContext(r.Context())
	user, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "userID"), change.Role)
	if err != nil {
		h.fail(w, "change role failed", err)
		return
	}
	h.logger.Info("role changed",
		slog.String("actor_id", actor.Subject),
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	httpx.OK(w, user)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, rbac.ErrNotAuthenticated) {
		rbac.WriteDenial(w, rbac.NewDenial(rbac.CodeNotAuthenticated, "Authentication required", nil))
		return
	}
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrForbidden) && !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrConflict) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
