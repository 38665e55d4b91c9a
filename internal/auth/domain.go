package auth

import (
	"time"

	"github.com/dfashion/dfashion-api/internal/rbac"
)

// User represents an account able to log in.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         rbac.Role
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserView  `json:"user"`
}

// UserView is the public projection of User.
type UserView struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  rbac.Role `json:"role"`
}
