package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	authn   *Authenticator
	revoker Revoker
	now     func() time.Time
}

// NewService constructs a new Service. revoker may be nil, in which case
// logout is a no-op and tokens live until they expire.
func NewService(repo Repository, authn *Authenticator, revoker Revoker) *Service {
	return &Service{repo: repo, authn: authn, revoker: revoker, now: time.Now}
}

// NormalizeEmail folds an email address for lookup. Casers are stateful,
// so one is built per call.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Login validates email/password credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.authn.Issue(IssueParams{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.Role,
	})
	if err != nil {
		return nil, err
	}
	// Best effort; a failed touch must not block login.
	_ = s.repo.TouchLastLogin(ctx, user.ID, s.now())

	return &LoginResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User: UserView{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  user.Role,
		},
	}, nil
}

// Logout revokes the token that authenticated id until its natural expiry.
func (s *Service) Logout(ctx context.Context, id *rbac.Identity) error {
	if id == nil {
		return ErrNoToken
	}
	if s.revoker == nil || id.TokenID == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}
