package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var (
	// ErrUnknownRole rejects role changes to a role outside the hierarchy.
	ErrUnknownRole = fmt.Errorf("users: unknown role: %w", httpx.ErrValidation)
	// ErrRoleEscalation rejects grants above the actor's own rank.
	ErrRoleEscalation = fmt.Errorf("users: cannot grant a role above your own: %w", httpx.ErrForbidden)
	// ErrOutranked rejects changes to users ranked above the actor.
	ErrOutranked = fmt.Errorf("users: target user outranks you: %w", httpx.ErrForbidden)
	// ErrSelfRoleChange rejects changing one's own role.
	ErrSelfRoleChange = fmt.Errorf("users: cannot change your own role: %w", httpx.ErrForbidden)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
	UpdateRole(ctx context.Context, id string, from, to rbac.Role) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	policy *rbac.Policy
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, policy *rbac.Policy) *Service {
	return &Service{repo: repo, policy: policy}
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	users, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateProfile changes profile fields of a user.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	return s.repo.UpdateProfile(ctx, id, update)
}

// ChangeRole assigns role to the user identified by id on behalf of actor.
// The actor must rank at or above both the target's current role and the
// role being granted.
func (s *Service) ChangeRole(ctx context.Context, actor *rbac.Identity, id string, role rbac.Role) (User, error) {
	if actor == nil {
		return User{}, rbac.ErrNotAuthenticated
	}
	if !s.policy.Hierarchy.Known(string(role)) {
		return User{}, ErrUnknownRole
	}
	if actor.Subject == id {
		return User{}, ErrSelfRoleChange
	}
	if !s.policy.IsAtLeast(string(actor.Role), string(role)) {
		return User{}, ErrRoleEscalation
	}
	target, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if s.policy.Hierarchy.Known(string(target.Role)) && !s.policy.IsAtLeast(string(actor.Role), string(target.Role)) {
		return User{}, ErrOutranked
	}
	if target.Role == role {
		return target, nil
	}
	updated, err := s.repo.UpdateRole(ctx, id, target.Role, role)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrConflict) {
			return User{}, err
		}
		return User{}, fmt.Errorf("users: update role: %w", err)
	}
	return updated, nil
}
