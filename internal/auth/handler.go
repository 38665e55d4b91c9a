package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	policy    *rbac.Policy
	auth      Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, policy *rbac.Policy, auth Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		policy:    policy,
		auth:      auth,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.With(h.auth.Require).Get("/me", h.handleMe)
	r.With(h.auth.Require).Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", validationMessage(err))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Fail(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("login succeeded", slog.String("user_id", result.User.ID), slog.String("role", string(result.User.Role)))
	httpx.OK(w, result)
}

type meView struct {
	*rbac.Identity
	Rank   int                 `json:"rank"`
	Grants map[string][]string `json:"grants"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id := rbac.IdentityFromContext(r.Context())
	if id == nil {
		rbac.WriteDenial(w, DenialFor(ErrNoToken))
		return
	}
	httpx.OK(w, meView{
		Identity: id,
		Rank:     h.policy.RankOf(string(id.Role)),
		Grants:   h.policy.Grants(string(id.Role)),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := rbac.IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), id); err != nil {
		if errors.Is(err, ErrNoToken) {
			rbac.WriteDenial(w, DenialFor(err))
			return
		}
		h.logger.Error("logout", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " failed " + verrs[0].Tag() + " validation"
	}
	return "validation failed"
}
