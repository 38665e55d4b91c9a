package rbac

import (
	"fmt"
	"slices"
)

// Outcome is the result of one guard evaluation. A nil Denial allows the
// request. IsResourceOwner is set by ownership guards on allow.
type Outcome struct {
	Denial          *Denial
	IsResourceOwner *bool
}

// Allowed reports whether the request may proceed.
func (o Outcome) Allowed() bool {
	return o.Denial == nil
}

// Guard is a synchronous, side-effect free authorization check.
type Guard interface {
	Name() string
	Check(id *Identity) Outcome
}

type guardFunc struct {
	name string
	fn   func(id *Identity) Outcome
}

func (g guardFunc) Name() string { return g.name }

func (g guardFunc) Check(id *Identity) Outcome {
	if id == nil {
		return Outcome{Denial: notAuthenticated()}
	}
	return g.fn(id)
}

// Chain runs guards in order and stops at the first deny.
type Chain []Guard

// Name implements Guard.
func (c Chain) Name() string { return "chain" }

// Check implements Guard. An empty chain still requires authentication.
func (c Chain) Check(id *Identity) Outcome {
	if id == nil {
		return Outcome{Denial: notAuthenticated()}
	}
	var merged Outcome
	for _, g := range c {
		out := g.Check(id)
		if !out.Allowed() {
			return out
		}
		if out.IsResourceOwner != nil {
			merged.IsResourceOwner = out.IsResourceOwner
		}
	}
	return merged
}

// Must unwraps a guard constructor result and panics on a configuration fault.
// Use it while mounting routes so a bad guard stops startup.
func Must(g Guard, err error) Guard {
	if err != nil {
		panic(err)
	}
	return g
}

// RequireAuthenticated allows any identified caller.
func RequireAuthenticated() Guard {
	return guardFunc{name: "authenticated", fn: func(*Identity) Outcome { return Outcome{} }}
}

// RequireRoles allows callers whose role is one of roles.
func (p *Policy) RequireRoles(roles ...Role) (Guard, error) {
	if len(roles) == 0 {
		return nil, &ConfigError{Component: "guard", Reason: "require roles: no roles given"}
	}
	for _, role := range roles {
		if !p.Hierarchy.Known(string(role)) {
			return nil, &ConfigError{Component: "guard", Reason: fmt.Sprintf("require roles: unknown role %q", role)}
		}
	}
	allowed := slices.Clone(roles)
	return guardFunc{name: "roles", fn: func(id *Identity) Outcome {
		if slices.Contains(allowed, id.Role) {
			return Outcome{}
		}
		return Outcome{Denial: NewDenial(CodeInsufficientRole, "Insufficient role", map[string]any{
			"requiredRoles": roleStrings(allowed),
			"userRole":      string(id.Role),
		})}
	}}, nil
}

// RequireMinimumRole allows callers ranked at least minimum.
func (p *Policy) RequireMinimumRole(minimum Role) (Guard, error) {
	if !p.Hierarchy.Known(string(minimum)) {
		return nil, &ConfigError{Component: "guard", Reason: fmt.Sprintf("require minimum role: unknown role %q", minimum)}
	}
	return guardFunc{name: "minimum_role", fn: func(id *Identity) Outcome {
		if p.Hierarchy.IsAtLeast(string(id.Role), string(minimum)) {
			return Outcome{}
		}
		return Outcome{Denial: NewDenial(CodeInsufficientRole, "Insufficient role", map[string]any{
			"minimumRole": string(minimum),
			"userRole":    string(id.Role),
		})}
	}}, nil
}

// RequirePermission allows callers holding any of actions on resource.
func (p *Policy) RequirePermission(resource string, actions ...string) (Guard, error) {
	if resource == "" {
		return nil, &ConfigError{Component: "guard", Reason: "require permission: blank resource"}
	}
	if len(actions) == 0 {
		return nil, &ConfigError{Component: "guard", Reason: fmt.Sprintf("require permission: no actions for %s", resource)}
	}
	required := slices.Clone(actions)
	return guardFunc{name: "permission", fn: func(id *Identity) Outcome {
		if p.Matrix.HasAnyPermission(string(id.Role), resource, required...) {
			return Outcome{}
		}
		return Outcome{Denial: NewDenial(CodeInsufficientPermission, "Insufficient permissions", map[string]any{
			"resource":        resource,
			"requiredActions": slices.Clone(required),
			"userRole":        string(id.Role),
		})}
	}}, nil
}

// RequireOwnershipOrMinimumRole allows the owner of the resource, or any
// caller ranked at least minimum. The outcome records which path matched.
func (p *Policy) RequireOwnershipOrMinimumRole(ownerID string, minimum Role) (Guard, error) {
	if !p.Hierarchy.Known(string(minimum)) {
		return nil, &ConfigError{Component: "guard", Reason: fmt.Sprintf("require ownership: unknown role %q", minimum)}
	}
	return guardFunc{name: "ownership", fn: func(id *Identity) Outcome {
		return p.CheckOwnership(id, ownerID, minimum)
	}}, nil
}

// CheckOwnership evaluates the ownership rule directly. Services use it once
// the owner of a loaded record is known.
func (p *Policy) CheckOwnership(id *Identity, ownerID string, minimum Role) Outcome {
	if id == nil {
		return Outcome{Denial: notAuthenticated()}
	}
	if ownerID != "" && id.Subject == ownerID {
		return Outcome{IsResourceOwner: boolPtr(true)}
	}
	if p.Hierarchy.IsAtLeast(string(id.Role), string(minimum)) {
		return Outcome{IsResourceOwner: boolPtr(false)}
	}
	return Outcome{Denial: NewDenial(CodeNotResourceOwner, "Access denied: you can only access your own resources", map[string]any{
		"ownerId": ownerID,
		"userId":  id.Subject,
	})}
}

func notAuthenticated() *Denial {
	return NewDenial(CodeNotAuthenticated, "Authentication required", nil)
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
