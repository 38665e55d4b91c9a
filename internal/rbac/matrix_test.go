package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatrix(t *testing.T) *Matrix {
	t.Helper()
	h, err := NewHierarchy([]Role{RoleAdmin, RoleSeller, RoleCustomer})
	require.NoError(t, err)
	m, err := NewMatrix(h, map[Role]map[string][]string{
		RoleAdmin:  {"orders": {"read", "update", "delete"}, "reports": {"export"}},
		RoleSeller: {"orders": {"update", "read"}},
	})
	require.NoError(t, err)
	return m
}

func TestPermissionsForReturnsSortedActions(t *testing.T) {
	m := newTestMatrix(t)
	assert.Equal(t, []string{"read", "update"}, m.PermissionsFor("seller", "orders"))
	assert.Equal(t, []string{"delete", "read", "update"}, m.PermissionsFor("admin", "orders"))
}

func TestPermissionsForFailsClosed(t *testing.T) {
	m := newTestMatrix(t)

	cases := []struct{ role, resource string }{
		{"customer", "orders"},
		{"seller", "reports"},
		{"ghost", "orders"},
		{"admin", "unknown"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Empty(t, m.PermissionsFor(tc.role, tc.resource), "%s/%s", tc.role, tc.resource)
		assert.False(t, m.HasPermission(tc.role, tc.resource, "read"))
	}

	var nilMatrix *Matrix
	assert.Empty(t, nilMatrix.PermissionsFor("admin", "orders"))
	assert.False(t, nilMatrix.HasAnyPermission("admin", "orders", "read"))
}

func TestHasPermission(t *testing.T) {
	m := newTestMatrix(t)
	assert.True(t, m.HasPermission("seller", "orders", "read"))
	assert.False(t, m.HasPermission("seller", "orders", "delete"))
}

func TestHasAnyPermission(t *testing.T) {
	m := newTestMatrix(t)
	assert.True(t, m.HasAnyPermission("admin", "reports", "read", "export"))
	assert.False(t, m.HasAnyPermission("seller", "orders", "delete", "refund"))
	assert.False(t, m.HasAnyPermission("admin", "orders"))
}

func TestNewMatrixRejectsMalformedGrants(t *testing.T) {
	h, err := NewHierarchy([]Role{RoleAdmin})
	require.NoError(t, err)

	cases := map[string]map[Role]map[string][]string{
		"unknown role":   {"ghost": {"orders": {"read"}}},
		"blank resource": {RoleAdmin: {"": {"read"}}},
		"blank action":   {RoleAdmin: {"orders": {"read", ""}}},
	}
	for name, grants := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewMatrix(h, grants)
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
		})
	}

	_, err = NewMatrix(nil, nil)
	require.Error(t, err)
}

func TestMatrixIsIndependentOfSourceMap(t *testing.T) {
	h, err := NewHierarchy([]Role{RoleAdmin})
	require.NoError(t, err)
	grants := map[Role]map[string][]string{RoleAdmin: {"orders": {"read"}}}
	m, err := NewMatrix(h, grants)
	require.NoError(t, err)

	grants[RoleAdmin]["orders"] = append(grants[RoleAdmin]["orders"], "delete")
	grants[RoleAdmin]["users"] = []string{"read"}

	assert.False(t, m.HasPermission("admin", "orders", "delete"))
	assert.Empty(t, m.PermissionsFor("admin", "users"))
}
