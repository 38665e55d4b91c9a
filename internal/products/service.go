package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service holds product business rules.
type Service struct {
	repo   Repository
	policy *rbac.Policy
	newID  func() string
}

// NewService builds a Service.
func NewService(repo Repository, policy *rbac.Policy) *Service {
	return &Service{repo: repo, policy: policy, newID: uuid.NewString}
}

// List returns a page of products. Anonymous callers and customers only see
// active listings; sellers additionally see their own.
func (s *Service) List(ctx context.Context, caller *rbac.Identity, filters ListFilters) (ListResult, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = defaultLimit
	}
	if filters.Limit > maxLimit {
		filters.Limit = maxLimit
	}
	if !s.seesAllStatuses(caller, filters.SellerID) {
		filters.Status = StatusActive
	}
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Product{}
	}
	return ListResult{Items: items, Total: total, Page: filters.Page, Limit: filters.Limit}, nil
}

// Get returns a product. Listings that are not active are hidden from
// callers who could not moderate or own them.
func (s *Service) Get(ctx context.Context, caller *rbac.Identity, id string) (Product, error) {
	if err := validateID(id); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.Status != StatusActive && !s.seesAllStatuses(caller, p.SellerID) {
		return Product{}, httpx.ErrNotFound
	}
	return p, nil
}

// Create lists a new product owned by the caller. Moderators and above may
// list on behalf of another seller through form.SellerID.
func (s *Service) Create(ctx context.Context, caller *rbac.Identity, form ProductForm) (Product, error) {
	if caller == nil {
		return Product{}, rbac.ErrNotAuthenticated
	}
	seller := caller.Subject
	if id := strings.TrimSpace(form.SellerID); id != "" && id != caller.Subject {
		out := s.policy.CheckOwnership(caller, id, rbac.RoleModerator)
		if !out.Allowed() {
			return Product{}, out.Denial
		}
		seller = id
	}
	p := Product{
		ID:       s.newID(),
		SellerID: seller,
		Status:   StatusPending,
	}
	applyForm(&p, form)
	return s.repo.Create(ctx, p)
}

// Update changes a product owned by the caller, or any product when the
// caller ranks moderator or above.
func (s *Service) Update(ctx context.Context, caller *rbac.Identity, id string, form ProductForm) (Product, error) {
	p, err := s.loadForMutation(ctx, caller, id)
	if err != nil {
		return Product{}, err
	}
	applyForm(&p, form)
	return s.repo.Update(ctx, p)
}

// Delete removes a product under the same ownership rule as Update.
func (s *Service) Delete(ctx context.Context, caller *rbac.Identity, id string) error {
	if _, err := s.loadForMutation(ctx, caller, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// SetStatus records a moderation decision.
func (s *Service) SetStatus(ctx context.Context, id, status string) (Product, error) {
	if err := validateID(id); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.Status = status
	return s.repo.Update(ctx, p)
}

func (s *Service) loadForMutation(ctx context.Context, caller *rbac.Identity, id string) (Product, error) {
	if err := validateID(id); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	out := s.policy.CheckOwnership(caller, p.SellerID, rbac.RoleModerator)
	if rec := rbac.AuditFromContext(ctx); rec != nil && out.IsResourceOwner != nil {
		rec.IsOwner = out.IsResourceOwner
	}
	if !out.Allowed() {
		return Product{}, out.Denial
	}
	return p, nil
}

func (s *Service) seesAllStatuses(caller *rbac.Identity, sellerID string) bool {
	if caller == nil {
		return false
	}
	if sellerID != "" && caller.Subject == sellerID {
		return true
	}
	return s.policy.IsAtLeast(string(caller.Role), string(rbac.RoleModerator))
}

func applyForm(p *Product, form ProductForm) {
	p.SKU = strings.TrimSpace(form.SKU)
	p.Name = strings.TrimSpace(form.Name)
	p.Description = form.Description
	p.CategoryID = form.CategoryID
	p.PriceCents = form.PriceCents
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid product id: %w", httpx.ErrValidation)
	}
	return nil
}
