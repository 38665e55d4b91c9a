package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

var (
	// ErrNoToken indicates the request carried no bearer token.
	ErrNoToken = errors.New("auth: no token provided")
	// ErrMissingSigningKey indicates the token secret is not configured.
	ErrMissingSigningKey = errors.New("auth: signing key must be configured")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrTokenRevoked indicates a token that was signed out before expiry.
	ErrTokenRevoked = errors.New("auth: token revoked")
)

// TokenExpiredError reports a token whose exp claim has passed.
type TokenExpiredError struct {
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("auth: token expired at %s", e.ExpiredAt.UTC().Format(time.RFC3339))
}

// InvalidTokenError reports any other verification failure. Reason is meant
// for logs and is not sent to clients.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: invalid token: %s: %v", e.Reason, e.Err)
	}
	return "auth: invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

// DenialFor converts an authentication error into a client-facing denial.
func DenialFor(err error) *rbac.Denial {
	var expired *TokenExpiredError
	switch {
	case errors.Is(err, ErrNoToken):
		return rbac.NewDenial(rbac.CodeNoToken, "Access token is required", nil)
	case errors.Is(err, ErrTokenRevoked):
		return rbac.NewDenial(rbac.CodeInvalidToken, "Access token has been revoked", nil)
	case errors.As(err, &expired):
		return rbac.NewDenial(rbac.CodeTokenExpired, "Access token has expired", map[string]any{
			"expiredAt": expired.ExpiredAt.UTC().Format(time.RFC3339),
		})
	default:
		return rbac.NewDenial(rbac.CodeInvalidToken, "Invalid access token", nil)
	}
}
