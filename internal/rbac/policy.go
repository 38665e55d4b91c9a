package rbac

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy bundles the role hierarchy and permission matrix loaded at startup.
type Policy struct {
	Hierarchy *Hierarchy
	Matrix    *Matrix
}

type policyDocument struct {
	Roles       []Role                       `yaml:"roles"`
	Permissions map[Role]map[string][]string `yaml:"permissions"`
}

// NewPolicy assembles a Policy from an ordered role list and grants.
func NewPolicy(order []Role, grants map[Role]map[string][]string) (*Policy, error) {
	hierarchy, err := NewHierarchy(order)
	if err != nil {
		return nil, err
	}
	matrix, err := NewMatrix(hierarchy, grants)
	if err != nil {
		return nil, err
	}
	return &Policy{Hierarchy: hierarchy, Matrix: matrix}, nil
}

// LoadPolicy parses a YAML policy document.
func LoadPolicy(data []byte) (*Policy, error) {
	var doc policyDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Component: "policy", Reason: "document is empty"}
		}
		return nil, &ConfigError{Component: "policy", Reason: err.Error()}
	}
	return NewPolicy(doc.Roles, doc.Permissions)
}

// LoadPolicyFile reads and parses the policy at path.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read policy: %w", err)
	}
	return LoadPolicy(data)
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() (*Policy, error) {
	return LoadPolicy(defaultPolicyYAML)
}

// MustDefaultPolicy returns the built-in policy and panics if it is malformed.
func MustDefaultPolicy() *Policy {
	p, err := DefaultPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// RankOf delegates to the hierarchy.
func (p *Policy) RankOf(role string) int {
	return p.Hierarchy.RankOf(role)
}

// IsAtLeast delegates to the hierarchy.
func (p *Policy) IsAtLeast(actual, minimum string) bool {
	return p.Hierarchy.IsAtLeast(actual, minimum)
}

// PermissionsFor delegates to the matrix.
func (p *Policy) PermissionsFor(role, resource string) []string {
	return p.Matrix.PermissionsFor(role, resource)
}

// HasPermission delegates to the matrix.
func (p *Policy) HasPermission(role, resource, action string) bool {
	return p.Matrix.HasPermission(role, resource, action)
}

// HasAnyPermission delegates to the matrix.
func (p *Policy) HasAnyPermission(role, resource string, actions ...string) bool {
	return p.Matrix.HasAnyPermission(role, resource, actions...)
}

// Grants returns every resource and its actions for role.
func (p *Policy) Grants(role string) map[string][]string {
	resources := p.Matrix.Resources(role)
	out := make(map[string][]string, len(resources))
	for _, resource := range resources {
		out[resource] = p.Matrix.PermissionsFor(role, resource)
	}
	return out
}
