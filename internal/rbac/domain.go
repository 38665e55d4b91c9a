package rbac

import "time"

// Role represents a privilege level in the role hierarchy.
type Role string

// Known roles, most to least privileged.
const (
	RoleSuperAdmin   Role = "super_admin"
	RoleAdmin        Role = "admin"
	RoleModerator    Role = "moderator"
	RoleSupportAgent Role = "support_agent"
	RoleSeller       Role = "seller"
	RoleCreator      Role = "creator"
	RoleCustomer     Role = "customer"
)

// DefaultRoleOrder lists the built-in roles from most to least privileged.
func DefaultRoleOrder() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleAdmin,
		RoleModerator,
		RoleSupportAgent,
		RoleSeller,
		RoleCreator,
		RoleCustomer,
	}
}

// Common action verbs used by the permission matrix.
const (
	ActionCreate   = "create"
	ActionRead     = "read"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionApprove  = "approve"
	ActionBan      = "ban"
	ActionRefund   = "refund"
	ActionModerate = "moderate"
	ActionExport   = "export"
	ActionClose    = "close"
)

// Identity describes the authenticated actor attached to a request.
type Identity struct {
	Subject     string    `json:"sub"`
	Email       string    `json:"email,omitempty"`
	Role        Role      `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	TokenType   string    `json:"tokenType"`
	TokenID     string    `json:"jti,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
}
