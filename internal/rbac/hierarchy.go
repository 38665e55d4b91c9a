package rbac

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Hierarchy is a fixed total order over roles. Rank 0 is the most privileged.
// It is read-only after construction and safe for concurrent use.
type Hierarchy struct {
	order []Role
	ranks map[Role]int
}

// NewHierarchy builds a Hierarchy from roles listed most to least privileged.
func NewHierarchy(order []Role) (*Hierarchy, error) {
	if len(order) == 0 {
		return nil, &ConfigError{Component: "hierarchy", Reason: "no roles defined"}
	}
	ranks := make(map[Role]int, len(order))
	for i, role := range order {
		if strings.TrimSpace(string(role)) == "" {
			return nil, &ConfigError{Component: "hierarchy", Reason: fmt.Sprintf("blank role at position %d", i)}
		}
		if _, dup := ranks[role]; dup {
			return nil, &ConfigError{Component: "hierarchy", Reason: fmt.Sprintf("duplicate role %q", role)}
		}
		ranks[role] = i
	}
	return &Hierarchy{order: slices.Clone(order), ranks: ranks}, nil
}

// RankOf returns the rank of role. Unknown roles rank one below the least
// privileged known role. A nil hierarchy ranks every role last.
func (h *Hierarchy) RankOf(role string) int {
	if h == nil {
		return math.MaxInt
	}
	if rank, ok := h.ranks[Role(role)]; ok {
		return rank
	}
	return len(h.order)
}

// Known reports whether role is part of the hierarchy.
func (h *Hierarchy) Known(role string) bool {
	if h == nil {
		return false
	}
	_, ok := h.ranks[Role(role)]
	return ok
}

// IsAtLeast reports whether actual is as privileged as minimum or more.
// Unknown roles on either side never satisfy the check.
func (h *Hierarchy) IsAtLeast(actual, minimum string) bool {
	if !h.Known(actual) || !h.Known(minimum) {
		return false
	}
	return h.RankOf(actual) <= h.RankOf(minimum)
}

// Roles returns the roles most to least privileged.
func (h *Hierarchy) Roles() []Role {
	if h == nil {
		return nil
	}
	return slices.Clone(h.order)
}
