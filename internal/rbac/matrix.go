package rbac

import (
	"fmt"
	"slices"
	"strings"
)

// Matrix maps role → resource → allowed actions. Absent entries grant nothing.
// It is read-only after construction.
type Matrix struct {
	grants map[Role]map[string]map[string]struct{}
}

// NewMatrix builds a Matrix. Every role in grants must belong to h.
func NewMatrix(h *Hierarchy, grants map[Role]map[string][]string) (*Matrix, error) {
	if h == nil {
		return nil, &ConfigError{Component: "matrix", Reason: "hierarchy is nil"}
	}
	m := &Matrix{grants: make(map[Role]map[string]map[string]struct{}, len(grants))}
	for role, resources := range grants {
		if !h.Known(string(role)) {
			return nil, &ConfigError{Component: "matrix", Reason: fmt.Sprintf("unknown role %q", role)}
		}
		byResource := make(map[string]map[string]struct{}, len(resources))
		for resource, actions := range resources {
			if strings.TrimSpace(resource) == "" {
				return nil, &ConfigError{Component: "matrix", Reason: fmt.Sprintf("blank resource for role %q", role)}
			}
			set := make(map[string]struct{}, len(actions))
			for _, action := range actions {
				if strings.TrimSpace(action) == "" {
					return nil, &ConfigError{Component: "matrix", Reason: fmt.Sprintf("blank action on %s for role %q", resource, role)}
				}
				set[action] = struct{}{}
			}
			byResource[resource] = set
		}
		m.grants[role] = byResource
	}
	return m, nil
}

// PermissionsFor returns the sorted actions role may perform on resource.
func (m *Matrix) PermissionsFor(role, resource string) []string {
	set := m.lookup(role, resource)
	actions := make([]string, 0, len(set))
	for action := range set {
		actions = append(actions, action)
	}
	slices.Sort(actions)
	return actions
}

// HasPermission reports whether role may perform action on resource.
func (m *Matrix) HasPermission(role, resource, action string) bool {
	_, ok := m.lookup(role, resource)[action]
	return ok
}

// HasAnyPermission reports whether role may perform at least one of actions.
func (m *Matrix) HasAnyPermission(role, resource string, actions ...string) bool {
	set := m.lookup(role, resource)
	for _, action := range actions {
		if _, ok := set[action]; ok {
			return true
		}
	}
	return false
}

// Resources lists the resources role holds any grant on, sorted.
func (m *Matrix) Resources(role string) []string {
	if m == nil {
		return nil
	}
	byResource := m.grants[Role(role)]
	resources := make([]string, 0, len(byResource))
	for resource := range byResource {
		resources = append(resources, resource)
	}
	slices.Sort(resources)
	return resources
}

func (m *Matrix) lookup(role, resource string) map[string]struct{} {
	if m == nil {
		return nil
	}
	return m.grants[Role(role)][resource]
}
