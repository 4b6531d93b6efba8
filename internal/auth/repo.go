package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	PrimaryRole(ctx context.Context, userID int64) (PrimaryRole, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, username, password_hash, is_active, created_at, updated_at`

// FindByUsername fetches a user by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// PrimaryRole returns the user's oldest currently-valid role for display in
// token claims. Users without a valid role get an empty name and nil id.
func (r *PGRepository) PrimaryRole(ctx context.Context, userID int64) (PrimaryRole, error) {
	var role PrimaryRole
	var id int64
	err := r.pool.QueryRow(ctx, `
SELECT r.id, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id AND r.is_active
WHERE ur.user_id = $1
  AND ur.is_active
  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
ORDER BY ur.assigned_at
LIMIT 1`, userID).Scan(&id, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PrimaryRole{}, nil
		}
		return PrimaryRole{}, err
	}
	role.ID = &id
	return role, nil
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
