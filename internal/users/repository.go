package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dfashion/dfashion-api/internal/platform/db"
	"github.com/dfashion/dfashion-api/internal/platform/httpx"
	"github.com/dfashion/dfashion-api/internal/rbac"
)

const userColumns = `id, email, name, role, is_active, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users ordered by creation.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	var role *string
	if filter.Role != "" {
		v := string(filter.Role)
		role = &v
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE ($1::text IS NULL OR role = $1)
		ORDER BY created_at, id LIMIT $2 OFFSET $3`, role, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanUser)
}

// GetUser loads one user.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	row, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return User{}, err
	}
	user, err := pgx.CollectExactlyOneRow(row, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, httpx.ErrNotFound
	}
	return user, err
}

// UpdateProfile changes the display name.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	row, err := r.pool.Query(ctx, `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, update.Name)
	if err != nil {
		return User{}, err
	}
	user, err := pgx.CollectExactlyOneRow(row, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, httpx.ErrNotFound
	}
	return user, err
}

// UpdateRole moves the user from role from to role to. The row is locked
// first so a concurrent change surfaces as httpx.ErrConflict.
func (r *Repository) UpdateRole(ctx context.Context, id string, from, to rbac.Role) (User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return httpx.ErrNotFound
		}
		if err != nil {
			return err
		}
		if rbac.Role(current) != from {
			return fmt.Errorf("users: role changed concurrently: %w", httpx.ErrConflict)
		}
		rows, err := tx.Query(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, string(to))
		if err != nil {
			return err
		}
		user, err = pgx.CollectExactlyOneRow(rows, scanUser)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func scanUser(row pgx.CollectableRow) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.Role = rbac.Role(role)
	return user, nil
}
