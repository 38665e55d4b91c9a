package rbac

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDecision struct {
	guard string
	code  string
}

type decisionSpy struct {
	decisions []recordedDecision
}

func (s *decisionSpy) RecordDecision(guard, code string) {
	s.decisions = append(s.decisions, recordedDecision{guard: guard, code: code})
}

func withIdentity(id *Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id != nil {
				r = r.WithContext(ContextWithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func TestMiddlewareRequirePermission(t *testing.T) {
	spy := &decisionSpy{}
	m := Middleware{Policy: MustDefaultPolicy(), Metrics: spy}

	cases := []struct {
		name   string
		id     *Identity
		status int
		code   string
	}{
		{name: "anonymous", id: nil, status: http.StatusUnauthorized, code: "NOT_AUTHENTICATED"},
		{name: "seller", id: &Identity{Subject: "s", Role: RoleSeller}, status: http.StatusForbidden, code: "INSUFFICIENT_PERMISSION"},
		{name: "admin", id: &Identity{Subject: "a", Role: RoleAdmin}, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(withIdentity(tc.id))
			r.With(m.RequirePermission("orders", ActionRefund)).Post("/orders/{id}/refund", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			res := httptest.NewRecorder()
			r.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/orders/7/refund", nil))
			require.Equal(t, tc.status, res.Code)
			if tc.code != "" {
				body := decodeBody(t, res)
				assert.Equal(t, tc.code, body["code"])
				assert.Equal(t, false, body["success"])
				assert.NotContains(t, res.Body.String(), "support_agent", "denial must not expose the matrix")
			}
		})
	}
	require.Len(t, spy.decisions, 3)
	assert.Equal(t, "ALLOW", spy.decisions[2].code)
}

func TestMiddlewareOwnershipSetsContextFlag(t *testing.T) {
	m := Middleware{Policy: MustDefaultPolicy()}

	run := func(id *Identity, target string) (*httptest.ResponseRecorder, *bool) {
		var seen *bool
		r := chi.NewRouter()
		r.Use(withIdentity(id))
		r.With(m.RequireOwnershipOrMinimumRole(OwnerFromURLParam("userID"), RoleAdmin)).Get("/users/{userID}", func(w http.ResponseWriter, r *http.Request) {
			if isOwner, ok := IsResourceOwner(r.Context()); ok {
				seen = &isOwner
			}
			w.WriteHeader(http.StatusOK)
		})
		res := httptest.NewRecorder()
		r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/users/"+target, nil))
		return res, seen
	}

	res, owner := run(&Identity{Subject: "u1", Role: RoleCustomer}, "u1")
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, owner)
	assert.True(t, *owner)

	res, owner = run(&Identity{Subject: "u9", Role: RoleAdmin}, "u2")
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, owner)
	assert.False(t, *owner)

	res, _ = run(&Identity{Subject: "u1", Role: RoleCustomer}, "u2")
	require.Equal(t, http.StatusForbidden, res.Code)
	body := decodeBody(t, res)
	assert.Equal(t, "NOT_RESOURCE_OWNER", body["code"])
	assert.Equal(t, "u2", body["ownerId"])

	res, _ = run(nil, "u2")
	require.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "NOT_AUTHENTICATED", decodeBody(t, res)["code"])
}

func TestOwnerFromBodyFieldRestoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"u5","note":"hi"}`))
	assert.Equal(t, "u5", OwnerFromBodyField("userId")(req))

	var body map[string]string
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	assert.Equal(t, "hi", body["note"])

	assert.Equal(t, "", OwnerFromBodyField("userId")(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))))
}

func TestOwnerFromBodyFieldKeepsOversizedBody(t *testing.T) {
	payload := `{"userId":"u5","blob":"` + strings.Repeat("x", maxAuditPayload+1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))

	assert.Equal(t, "", OwnerFromBodyField("userId")(req))

	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(restored))
	assert.Equal(t, payload, string(restored))
	require.NoError(t, req.Body.Close())
}

func TestMiddlewareRequireRoles(t *testing.T) {
	spy := &decisionSpy{}
	m := Middleware{Policy: MustDefaultPolicy(), Metrics: spy}

	cases := []struct {
		name   string
		id     *Identity
		status int
		code   string
	}{
		{name: "anonymous", status: http.StatusUnauthorized, code: "NOT_AUTHENTICATED"},
		{name: "super admin is not listed", id: &Identity{Subject: "r", Role: RoleSuperAdmin}, status: http.StatusForbidden, code: "INSUFFICIENT_ROLE"},
		{name: "moderator", id: &Identity{Subject: "m", Role: RoleModerator}, status: http.StatusNoContent},
		{name: "seller", id: &Identity{Subject: "s", Role: RoleSeller}, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(withIdentity(tc.id))
			r.With(m.RequireRoles(RoleModerator, RoleSeller)).Get("/queue", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			res := httptest.NewRecorder()
			r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/queue", nil))
			require.Equal(t, tc.status, res.Code)
			if tc.code != "" {
				body := decodeBody(t, res)
				assert.Equal(t, tc.code, body["code"])
			}
		})
	}
	require.Len(t, spy.decisions, len(cases))
	assert.Equal(t, "INSUFFICIENT_ROLE", spy.decisions[1].code)
}

func TestMiddlewareMisconfiguredGuardPanicsAtMount(t *testing.T) {
	m := Middleware{Policy: MustDefaultPolicy()}
	assert.Panics(t, func() { m.RequireMinimumRole("ghost") })
	assert.Panics(t, func() { m.RequireOwnershipOrMinimumRole(OwnerFromURLParam("id"), "ghost") })
	assert.Panics(t, func() { m.RequirePermission("orders") })
}

func TestAuditActionAttachesRecord(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Middleware{Policy: MustDefaultPolicy(), Now: func() time.Time { return fixed }}

	var rec *AuditRecord
	r := chi.NewRouter()
	r.Use(withIdentity(&Identity{Subject: "a1", Role: RoleAdmin}))
	r.With(m.AuditAction("update_role", "users")).Patch("/users/{userID}/role", func(w http.ResponseWriter, r *http.Request) {
		rec = AuditFromContext(r.Context())
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "seller", body["role"])
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPatch, "/users/u7/role", strings.NewReader(`{"role":"seller","password":"secret"}`))
	req.Header.Set("User-Agent", "test-agent")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "a1", rec.ActorID)
	assert.Equal(t, RoleAdmin, rec.ActorRole)
	assert.Equal(t, "update_role", rec.Action)
	assert.Equal(t, "users", rec.Resource)
	assert.Equal(t, "u7", rec.ResourceID)
	assert.Equal(t, fixed, rec.At)
	assert.Equal(t, "test-agent", rec.UserAgent)
	assert.JSONEq(t, `{"role":"seller"}`, string(rec.Payload))
}

func TestAuditActionToleratesMissingData(t *testing.T) {
	m := Middleware{Policy: MustDefaultPolicy()}
	var rec *AuditRecord
	h := m.AuditAction("export", "reports")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec = AuditFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader("<xml/>")))

	require.NotNil(t, rec)
	assert.Empty(t, rec.ResourceID)
	assert.Empty(t, rec.ActorID)
	assert.Nil(t, rec.Payload)
}

func TestAuditCaptureSeesInnerRecord(t *testing.T) {
	m := Middleware{Policy: MustDefaultPolicy()}
	req := httptest.NewRequest(http.MethodDelete, "/products", nil)
	ctx, captured := WithAuditCapture(req.Context())

	h := m.AuditAction("delete", "products")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))

	rec := captured()
	require.NotNil(t, rec)
	assert.Equal(t, "delete", rec.Action)
}
