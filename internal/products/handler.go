package products

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

// Handler serves the product catalogue.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers product routes. Reads are public; an identity, when
// present, widens what is visible.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.With(
		h.rbac.RequirePermission("products", rbac.ActionCreate),
		h.rbac.RequireOwnershipOrMinimumRole(sellerFromBody, rbac.RoleModerator),
		h.rbac.AuditAction("product.create", "products"),
	).Post("/", h.Create)
	r.With(
		h.rbac.RequirePermission("products", rbac.ActionUpdate),
		h.rbac.AuditAction("product.update", "products"),
	).Put("/{id}", h.Update)
	r.With(
		h.rbac.RequirePermission("products", rbac.ActionDelete),
		h.rbac.AuditAction("product.delete", "products"),
	).Delete("/{id}", h.Delete)
	r.With(
		h.rbac.RequirePermission("products", rbac.ActionApprove),
		h.rbac.AuditAction("product.moderate", "products"),
	).Patch("/{id}/status", h.SetStatus)
}

// sellerFromBody names the seller a new listing is created for. Without a
// sellerId the caller lists for themselves.
func sellerFromBody(r *http.Request) string {
	if seller := rbac.OwnerFromBodyField("sellerId")(r); seller != "" {
		return seller
	}
	if caller := rbac.IdentityFromContext(r.Context()); caller != nil {
		return caller.Subject
	}
	return ""
}

// List handles GET /products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{
		Page:       page,
		Limit:      limit,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
		SellerID:   q.Get("seller_id"),
		CategoryID: q.Get("category_id"),
		Status:     q.Get("status"),
	}
	result, err := h.service.List(r.Context(), rbac.IdentityFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "list products failed", err)
		return
	}
	httpx.OK(w, result)
}

// Show handles GET /products/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), rbac.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get product failed", err)
		return
	}
	httpx.OK(w, p)
}

// Create handles POST /products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	p, err := h.service.Create(r.Context(), rbac.IdentityFromContext(r.Context()), form)
	if err != nil {
		h.fail(w, "create product failed", err)
		return
	}
	if rec := rbac.AuditFromContext(r.Context()); rec != nil {
		rec.ResourceID = p.ID
	}
	httpx.Created(w, p)
}

// Update handles PUT /products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeForm(w, r)
	if !ok {
		return
	}
	p, err := h.service.Update(r.Context(), rbac.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), form)
	if err != nil {
		h.fail(w, "update product failed", err)
		return
	}
	httpx.OK(w, p)
}

// Delete handles DELETE /products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), rbac.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete product failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus handles PATCH /products/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var form StatusForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	p, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), form.Status)
	if err != nil {
		h.fail(w, "set product status failed", err)
		return
	}
	httpx.OK(w, p)
}

func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request) (ProductForm, bool) {
	var form ProductForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return ProductForm{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return ProductForm{}, false
	}
	return form, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	var denial *rbac.Denial
	if errors.As(err, &denial) {
		rbac.WriteDenial(w, denial)
		return
	}
	if errors.Is(err, rbac.ErrNotAuthenticated) {
		rbac.WriteDenial(w, rbac.NewDenial(rbac.CodeNotAuthenticated, "Authentication required", nil))
		return
	}
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
