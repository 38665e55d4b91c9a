package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// TokenTypeAccess marks tokens that may authenticate API requests.
const TokenTypeAccess = "access"

const defaultTokenTTL = time.Hour

// Claims is the only accepted token payload shape.
type Claims struct {
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	Role        string   `json:"role" validate:"required"`
	Permissions []string `json:"permissions,omitempty" validate:"omitempty,dive,required"`
	TokenType   string   `json:"token_type" validate:"required,eq=access"`
	jwt.RegisteredClaims
}

// Authenticator verifies and issues HS256 access tokens.
type Authenticator struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	hierarchy *rbac.Hierarchy
	validate  *validator.Validate
	now       func() time.Time
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// WithIssuer pins the iss claim on issue and verify.
func WithIssuer(issuer string) Option {
	return func(a *Authenticator) { a.issuer = issuer }
}

// WithTTL sets the lifetime of issued tokens.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// NewAuthenticator constructs an Authenticator. The secret is mandatory.
func NewAuthenticator(secret string, hierarchy *rbac.Hierarchy, opts ...Option) (*Authenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSigningKey
	}
	if hierarchy == nil {
		return nil, errors.New("auth: role hierarchy must be provided")
	}
	a := &Authenticator{
		secret:    []byte(secret),
		ttl:       defaultTokenTTL,
		hierarchy: hierarchy,
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate verifies raw and returns the identity it carries.
func (a *Authenticator) Authenticate(raw string) (*rbac.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.ExpiresAt != nil {
			return nil, &TokenExpiredError{ExpiredAt: claims.ExpiresAt.Time}
		}
		return nil, &InvalidTokenError{Reason: "verification failed", Err: err}
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, &InvalidTokenError{Reason: "missing subject"}
	}
	if err := a.validate.Struct(claims); err != nil {
		return nil, &InvalidTokenError{Reason: "claims schema", Err: err}
	}

	return &rbac.Identity{
		Subject:     claims.Subject,
		Email:       claims.Email,
		Role:        rbac.Role(claims.Role),
		Permissions: slices.Clone(claims.Permissions),
		TokenType:   claims.TokenType,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// AuthenticateOptional behaves like Authenticate but returns nil instead of
// an error, so anonymous paths can proceed.
func (a *Authenticator) AuthenticateOptional(raw string) *rbac.Identity {
	id, err := a.Authenticate(raw)
	if err != nil {
		return nil
	}
	return id
}

// IssueParams describes the principal a token is minted for.
type IssueParams struct {
	Subject     string
	Email       string
	Role        rbac.Role
	Permissions []string
}

// Issue signs an access token for p.
func (a *Authenticator) Issue(p IssueParams) (string, time.Time, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return "", time.Time{}, errors.New("auth: subject required")
	}
	if !a.hierarchy.Known(string(p.Role)) {
		return "", time.Time{}, fmt.Errorf("auth: unknown role %q", p.Role)
	}
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := Claims{
		Email:       p.Email,
		Role:        string(p.Role),
		Permissions: slices.Clone(p.Permissions),
		TokenType:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// TTL returns the lifetime of issued tokens.
func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}
