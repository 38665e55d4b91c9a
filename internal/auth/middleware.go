package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// Revoker tracks tokens signed out before their expiry.
type Revoker interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// Middleware attaches the token identity to the request context.
type Middleware struct {
	Authenticator *Authenticator
	Revocations   Revoker
	Logger        *slog.Logger
}

// identify authenticates the request token and consults the denylist.
// A denylist outage fails closed.
func (m Middleware) identify(r *http.Request) (*rbac.Identity, error) {
	id, err := m.Authenticator.Authenticate(BearerToken(r))
	if err != nil {
		return nil, err
	}
	if m.Revocations == nil || id.TokenID == "" {
		return id, nil
	}
	revoked, err := m.Revocations.IsRevoked(r.Context(), id.TokenID)
	if err != nil {
		return nil, &InvalidTokenError{Reason: "revocation lookup", Err: err}
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return id, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Require rejects requests without a valid access token.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.identify(r)
		if err != nil {
			if m.Logger != nil {
				var invalid *InvalidTokenError
				if errors.As(err, &invalid) {
					m.Logger.Warn("token rejected", slog.String("reason", invalid.Reason), slog.String("path", r.URL.Path))
				}
			}
			rbac.WriteDenial(w, DenialFor(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithIdentity(r.Context(), id)))
	})
}

// Optional attaches an identity when a valid token is present and lets
// anonymous requests through otherwise.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := m.identify(r); err == nil {
			r = r.WithContext(rbac.ContextWithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
