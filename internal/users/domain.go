package users

import (
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// User represents a user account for management.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      rbac.Role `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
type ProfileUpdate struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// RoleChange assigns a new role to a user.
type RoleChange struct {
	Role rbac.Role `json:"role" validate:"required"`
}

// ListFilter pages through users.
type ListFilter struct {
	Role   rbac.Role
	Limit  int
	Offset int
}
