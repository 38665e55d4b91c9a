package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfashion/dfashion-api/internal/app"
	"github.com/dfashion/dfashion-api/internal/audit"
	audithttp "github.com/dfashion/dfashion-api/internal/audit/http"
	"github.com/dfashion/dfashion-api/internal/auth"
	"github.com/dfashion/dfashion-api/internal/observability"
	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
	"github.com/dfashion/dfashion-api/internal/users"
	"github.com/dfashion/dfashion-api/jobs"
	_ "github.com/dfashion/dfashion-api/testing"
)

type emptyTimeline struct{}

func (emptyTimeline) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	return audit.Result{Rows: []rbac.AuditRecord{}}, nil
}

func (emptyTimeline) Export(ctx context.Context, filters audit.TimelineFilters) ([]rbac.AuditRecord, error) {
	return nil, nil
}

type userDirectory map[string]users.User

func (d userDirectory) ListUsers(ctx context.Context, filter users.ListFilter) ([]users.User, error) {
	out := make([]users.User, 0, len(d))
	for _, u := range d {
		out = append(out, u)
	}
	return out, nil
}

func (d userDirectory) GetUser(ctx context.Context, id string) (users.User, error) {
	u, ok := d[id]
	if !ok {
		return users.User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (d userDirectory) UpdateProfile(ctx context.Context, id string, update users.ProfileUpdate) (users.User, error) {
	u, err := d.GetUser(ctx, id)
	if err != nil {
		return users.User{}, err
	}
	u.Name = update.Name
	d[id] = u
	return u, nil
}

func (d userDirectory) UpdateRole(ctx context.Context, id string, from, to rbac.Role) (users.User, error) {
	u, err := d.GetUser(ctx, id)
	if err != nil {
		return users.User{}, err
	}
	if u.Role != from {
		return users.User{}, httpx.ErrConflict
	}
	u.Role = to
	d[id] = u
	return u, nil
}

type fixture struct {
	router  http.Handler
	authn   *auth.Authenticator
	metrics *observability.Metrics
}

func newFixture(t *testing.T, cfg *app.Config) fixture {
	t.Helper()
	policy := rbac.MustDefaultPolicy()
	authn, err := auth.NewAuthenticator("router-test-secret", policy.Hierarchy)
	require.NoError(t, err)
	metrics := observability.NewMetrics()
	rbacMW := rbac.Middleware{Policy: policy, Metrics: metrics}
	authMW := auth.Middleware{Authenticator: authn}
	directory := userDirectory{
		"user-customer": {ID: "user-customer", Email: "customer@test.local", Name: "Customer", Role: rbac.RoleCustomer, IsActive: true},
		"user-seller":   {ID: "user-seller", Email: "seller@test.local", Name: "Seller", Role: rbac.RoleSeller, IsActive: true},
	}

	router := app.NewRouter(app.RouterParams{
		Config:         cfg,
		Auth:           authMW,
		RBACMiddleware: rbacMW,
		Metrics:        metrics,
		UsersHandler:   users.NewHandler(nil, users.NewService(directory, policy), rbacMW),
		AuditHandler:   audithttp.NewHandler(nil, emptyTimeline{}, rbacMW),
		PolicyHandler:  rbac.NewHandler(nil, policy, rbacMW),
		JobHandler:     jobs.NewHandler(nil, nil),
	})
	return fixture{router: router, authn: authn, metrics: metrics}
}

func (f fixture) get(t *testing.T, target string, role rbac.Role) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	if role != "" {
		token, _, err := f.authn.Issue(auth.IssueParams{Subject: "user-" + string(role), Role: role})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func bodyCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	c, _ := body["code"].(string)
	return c
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get(t, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)
	for _, target := range []string{"/api/admin/rbac/roles", "/api/admin/audit-logs", "/api/admin/jobs/health", "/api/users/u1"} {
		rec := f.get(t, target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.Equal(t, "NO_TOKEN", bodyCode(t, rec), target)
	}
}

func TestUserProfileOwnershipThroughRouter(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/api/users/user-customer", rbac.RoleCustomer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.get(t, "/api/users/user-seller", rbac.RoleCustomer)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_RESOURCE_OWNER", bodyCode(t, rec))

	rec = f.get(t, "/api/users/user-seller", rbac.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPolicyRoutesByRole(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/api/admin/rbac/roles", rbac.RoleSeller)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INSUFFICIENT_PERMISSION", bodyCode(t, rec))

	rec = f.get(t, "/api/admin/rbac/roles", rbac.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []struct {
			Name string `json:"name"`
			Rank int    `json:"rank"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 7)
	assert.Equal(t, "super_admin", body.Data[0].Name)
}

func TestJobsHealthNeedsAdmin(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/api/admin/jobs/health", rbac.RoleModerator)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INSUFFICIENT_ROLE", bodyCode(t, rec))

	rec = f.get(t, "/api/admin/jobs/health", rbac.RoleAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"audit"`)
}

func TestDecisionsAreExported(t *testing.T) {
	f := newFixture(t, nil)
	f.get(t, "/api/admin/rbac/roles", rbac.RoleCustomer)
	f.get(t, "/api/admin/rbac/roles", rbac.RoleSuperAdmin)

	rec := f.get(t, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `code="INSUFFICIENT_PERMISSION"`), body)
	assert.True(t, strings.Contains(body, `code="ALLOW"`), body)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.get(t, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", bodyCode(t, rec))
}

func TestGlobalRateLimit(t *testing.T) {
	f := newFixture(t, &app.Config{RateLimitPerMinute: 2})
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", "").Code)

	rec := f.get(t, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", bodyCode(t, rec))
}
