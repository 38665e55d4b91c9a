package auth_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfashion/dfashion-api/internal/auth"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":     "abc",
		"bearer abc":     "abc",
		"BEARER  abc ":   "abc",
		"Basic dXNlcjpw": "",
		"abc":            "",
		"":               "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, auth.BearerToken(req), "header %q", header)
	}
}

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		if id == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(id.Subject))
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireMiddleware(t *testing.T) {
	clock := &fakeClock{now: issuedAt}
	a := newAuthenticator(t, clock)
	mw := auth.Middleware{Authenticator: a}
	handler := mw.Require(identityEcho())

	token, _, err := a.Issue(auth.IssueParams{Subject: "u1", Role: rbac.RoleSeller})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "NO_TOKEN", body["code"])
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "INVALID_TOKEN", decodeBody(t, rec)["code"])
	})

	t.Run("expired token", func(t *testing.T) {
		expiredClock := &fakeClock{now: issuedAt.Add(3 * time.Hour)}
		expiredMW := auth.Middleware{Authenticator: newAuthenticator(t, expiredClock)}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		expiredMW.Require(identityEcho()).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "TOKEN_EXPIRED", body["code"])
		assert.Equal(t, "2026-03-01T11:00:00Z", body["expiredAt"])
	})
}

func TestOptionalMiddleware(t *testing.T) {
	a := newAuthenticator(t, &fakeClock{now: issuedAt})
	handler := auth.Middleware{Authenticator: a}.Optional(identityEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	token, _, err := a.Issue(auth.IssueParams{Subject: "u5", Role: rbac.RoleCustomer})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u5", rec.Body.String())
}

func TestRequireFailsClosedWhenDenylistUnavailable(t *testing.T) {
	a := newAuthenticator(t, &fakeClock{now: issuedAt})
	token, _, err := a.Issue(auth.IssueParams{Subject: "u1", Role: rbac.RoleSeller})
	require.NoError(t, err)

	revoker := newMemoryRevoker()
	revoker.err = errors.New("redis down")
	mw := auth.Middleware{Authenticator: a, Revocations: revoker}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.Require(identityEcho()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decodeBody(t, rec)["code"])

	rec = httptest.NewRecorder()
	mw.Optional(identityEcho()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
