package rbac

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyLoads(t *testing.T) {
	p, err := DefaultPolicy()
	require.NoError(t, err)
	assert.Equal(t, DefaultRoleOrder(), p.Hierarchy.Roles())
}

func TestDefaultPolicySellerOrders(t *testing.T) {
	p := MustDefaultPolicy()
	assert.Equal(t, []string{"read", "update"}, p.PermissionsFor("seller", "orders"))
	assert.False(t, p.HasPermission("seller", "orders", "delete"))
}

func TestDefaultPolicyEveryRoleHasGrants(t *testing.T) {
	p := MustDefaultPolicy()
	for _, role := range p.Hierarchy.Roles() {
		assert.NotEmpty(t, p.Grants(string(role)), "role %s has no grants", role)
	}
}

func TestDefaultPolicyOnlySuperAdminManagesRoles(t *testing.T) {
	p := MustDefaultPolicy()
	for _, role := range p.Hierarchy.Roles() {
		canUpdate := p.HasPermission(string(role), "roles", ActionUpdate)
		assert.Equal(t, role == RoleSuperAdmin, canUpdate, "role %s", role)
	}
}

func TestLoadPolicyRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"unknown field": "roles: [admin]\nextra: true\n",
		"unknown role":  "roles: [admin]\npermissions:\n  ghost:\n    orders: [read]\n",
		"no roles":      "permissions: {}\n",
		"not yaml":      "roles: [admin\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPolicy([]byte(doc))
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "roles: [owner, staff]\npermissions:\n  owner:\n    orders: [read, refund]\n  staff:\n    orders: [read]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.True(t, p.IsAtLeast("owner", "staff"))
	assert.True(t, p.HasAnyPermission("staff", "orders", "refund", "read"))
	assert.False(t, p.HasPermission("staff", "orders", "refund"))

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
