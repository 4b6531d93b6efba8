package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foundry-erp/foundry-erp/internal/platform/db"
	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the permission store.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

// userPermissionsQuery joins currently-valid assignments through active roles
// to permissions. Validity: assignment active, not expired, role active.
const userPermissionsQuery = `
SELECT DISTINCT p.module, p.action, p.resource
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id AND r.is_active
JOIN role_permissions rp ON rp.role_id = r.id
JOIN permissions p ON p.id = rp.permission_id
WHERE ur.user_id = $1
  AND ur.is_active
  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())`

// UserPermissions computes the deduplicated permission set for a user. An
// unknown user yields an empty set.
func (r *Repository) UserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	rows, err := r.pool.Query(ctx, userPermissionsQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(PermissionSet)
	for rows.Next() {
		var module, action string
		var resource *string
		if err := rows.Scan(&module, &action, &resource); err != nil {
			return nil, err
		}
		set[permissionKey(module, action, scanResource(resource))] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// ListPermissions returns the permission catalog ordered by wire form.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module, action, resource, description FROM permissions ORDER BY module, action, resource NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListRolePermissions returns the permissions granted to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.module, p.action, p.resource, p.description FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id WHERE rp.role_id = $1 ORDER BY p.module, p.action, p.resource NULLS FIRST`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, is_system, is_active, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, is_system, is_active, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListUserAssignments returns every assignment rows for a user, including
// revoked and expired ones, newest first.
func (r *Repository) ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT ur.user_id, ur.role_id, r.name, ur.assigned_at, ur.assigned_by, ur.expires_at, ur.is_active, ur.revoked_by, ur.revoked_at FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = $1 ORDER BY ur.assigned_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.RoleName, &a.AssignedAt, &a.AssignedBy, &a.ExpiresAt, &a.IsActive, &a.RevokedBy, &a.RevokedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// WithTx runs fn inside a transaction scoped TxRepository so multi-statement
// mutations commit atomically with their audit rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, audit: r.audit})
	})
}

// TxRepository exposes the mutations that must run transactionally.
type TxRepository interface {
	CreateRole(ctx context.Context, name, description string) (*Role, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
	CreatePermission(ctx context.Context, p Permission) (*Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AssignRole(ctx context.Context, a Assignment) error
	RevokeRole(ctx context.Context, userID, roleID, revokedBy int64) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

type txRepository struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (t *txRepository) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	var role Role
	err := t.tx.QueryRow(ctx, `INSERT INTO roles (name, description, is_system, is_active, created_at, updated_at) VALUES ($1, $2, FALSE, TRUE, NOW(), NOW()) RETURNING id, name, description, is_system, is_active, created_at, updated_at`, name, description).
		Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, mapConstraint(err)
	}
	return &role, nil
}

func (t *txRepository) UpdateRole(ctx context.Context, role Role) error {
	tag, err := t.tx.Exec(ctx, `UPDATE roles SET name = $2, description = $3, is_active = $4, updated_at = NOW() WHERE id = $1`, role.ID, role.Name, role.Description, role.IsActive)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) DeleteRole(ctx context.Context, id int64) error {
	// Grants and assignments reference the role and must go with it.
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) CreatePermission(ctx context.Context, p Permission) (*Permission, error) {
	var resource *string
	if !p.Resource.IsAny() {
		name := p.Resource.Name()
		resource = &name
	}
	created := p
	err := t.tx.QueryRow(ctx, `INSERT INTO permissions (module, action, resource, description) VALUES ($1, $2, $3, $4) ON CONFLICT (module, action, COALESCE(resource, '')) DO UPDATE SET description = EXCLUDED.description RETURNING id`, p.Module, p.Action, resource, p.Description).
		Scan(&created.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (t *txRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for _, id := range permissionIDs {
		if _, err := t.tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, id); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (t *txRepository) AssignRole(ctx context.Context, a Assignment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by, expires_at, is_active) VALUES ($1, $2, NOW(), $3, $4, TRUE)
ON CONFLICT (user_id, role_id) DO UPDATE SET assigned_at = NOW(), assigned_by = EXCLUDED.assigned_by, expires_at = EXCLUDED.expires_at, is_active = TRUE, revoked_by = NULL, revoked_at = NULL`, a.UserID, a.RoleID, a.AssignedBy, a.ExpiresAt)
	return mapConstraint(err)
}

func (t *txRepository) RevokeRole(ctx context.Context, userID, roleID, revokedBy int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE user_roles SET is_active = FALSE, revoked_by = $3, revoked_at = NOW() WHERE user_id = $1 AND role_id = $2 AND is_active`, userID, roleID, revokedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.RecordTx(ctx, t.tx, log)
}

func scanResource(resource *string) Resource {
	if resource == nil || *resource == "" || *resource == "*" {
		return AnyResource()
	}
	return ExactResource(*resource)
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		var resource *string
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &resource, &p.Description); err != nil {
			return nil, err
		}
		p.Resource = scanResource(resource)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// mapConstraint translates unique violations to ErrDuplicate and foreign-key
// violations (a referenced row is missing) to ErrNotFound.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrNotFound
		}
	}
	return err
}

var _ Resolver = (*Repository)(nil)
