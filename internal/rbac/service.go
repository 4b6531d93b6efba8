package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/foundry-erp/foundry-erp/internal/shared"
)

// ServiceRepository is the persistence surface the admin service needs.
type ServiceRepository interface {
	Resolver
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error)
}

// Service orchestrates role and assignment mutations. Every mutation commits
// atomically with its audit row, then invalidates the permission cache before
// returning: per-user for assignment changes, globally for role-level changes
// since the engine does not track which users hold a role.
type Service struct {
	repo   ServiceRepository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (*Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListRolePermissions returns the permissions granted to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return s.repo.ListRolePermissions(ctx, roleID)
}

// ListUserAssignments returns a user's assignment history.
func (s *Service) ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	return s.repo.ListUserAssignments(ctx, userID)
}

// EffectivePermissions resolves the live permission set, bypassing the cache.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	return s.repo.UserPermissions(ctx, userID)
}

// CreateRole inserts a new non-system role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("rbac: role name required")
	}
	var created *Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.CreateRole(ctx, name, strings.TrimSpace(description))
		if err != nil {
			return err
		}
		created = role
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.create",
			Entity:   "roles",
			EntityID: strconv.FormatInt(role.ID, 10),
			Delta:    map[string]any{"name": role.Name, "description": role.Description},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRole edits a role. System roles keep their name; other fields may
// change. The whole cache is cleared because an active-flag flip alters what
// every holder of the role can do.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name, description string, isActive bool) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("rbac: role name required")
	}
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsSystem && !strings.EqualFold(current.Name, name) {
		return nil, shared.ErrSystemRole
	}
	updated := *current
	updated.Name = name
	updated.Description = strings.TrimSpace(description)
	updated.IsActive = isActive
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateRole(ctx, updated); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.update",
			Entity:   "roles",
			EntityID: strconv.FormatInt(id, 10),
			Delta: map[string]any{
				"before": map[string]any{"name": current.Name, "description": current.Description, "is_active": current.IsActive},
				"after":  map[string]any{"name": updated.Name, "description": updated.Description, "is_active": updated.IsActive},
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateAll()
	return &updated, nil
}

// DeleteRole removes a non-system role and clears the cache.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return shared.ErrSystemRole
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteRole(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.delete",
			Entity:   "roles",
			EntityID: strconv.FormatInt(id, 10),
			Delta:    map[string]any{"name": current.Name},
		})
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateAll()
	return nil
}

// SetRolePermissions replaces the permission set of a role and clears the
// whole cache: any number of users may hold the role.
func (s *Service) SetRolePermissions(ctx context.Context, actorID, roleID int64, permissionIDs []int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	before, err := s.repo.ListRolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.permissions.replace",
			Entity:   "role_permissions",
			EntityID: strconv.FormatInt(roleID, 10),
			Delta: map[string]any{
				"before": permissionIDsOf(before),
				"after":  permissionIDs,
			},
		})
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateAll()
	if s.logger != nil {
		s.logger.Info("role permissions replaced, cache cleared", slog.Int64("role_id", roleID))
	}
	return nil
}

// EnsurePermission upserts a permission catalog entry. Nothing is granted
// until the permission is attached to a role, so no invalidation is needed.
func (s *Service) EnsurePermission(ctx context.Context, p Permission) (*Permission, error) {
	var created *Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		perm, err := tx.CreatePermission(ctx, p)
		if err != nil {
			return err
		}
		created = perm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AssignRole grants a role to a user, optionally bounded by expiresAt, and
// invalidates that user's cache entry.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64, expiresAt *time.Time) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AssignRole(ctx, Assignment{UserID: userID, RoleID: roleID, AssignedBy: actorID, ExpiresAt: expiresAt}); err != nil {
			return err
		}
		delta := map[string]any{"role": role.Name, "user_id": userID}
		if expiresAt != nil {
			delta["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.assign",
			Entity:   "user_roles",
			EntityID: strconv.FormatInt(userID, 10),
			Delta:    delta,
		})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// RevokeRole soft-revokes an assignment and invalidates the user's entry.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.RevokeRole(ctx, userID, roleID, actorID); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "role.revoke",
			Entity:   "user_roles",
			EntityID: strconv.FormatInt(userID, 10),
			Delta:    map[string]any{"role_id": roleID, "user_id": userID},
		})
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

func permissionIDsOf(perms []Permission) []int64 {
	ids := make([]int64, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	return ids
}
