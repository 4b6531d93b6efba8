package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/shared"
)

type stubServiceRepo struct {
	roles           map[int64]*Role
	rolePermissions map[int64][]Permission
	assignments     map[int64][]Assignment
	permissions     []Permission
	nextRoleID      int64

	audits  []shared.AuditLog
	txError error
}

func newStubServiceRepo() *stubServiceRepo {
	return &stubServiceRepo{
		roles:           make(map[int64]*Role),
		rolePermissions: make(map[int64][]Permission),
		assignments:     make(map[int64][]Assignment),
		nextRoleID:      1,
	}
}

func (r *stubServiceRepo) addRole(role Role) *Role {
	if role.ID == 0 {
		role.ID = r.nextRoleID
		r.nextRoleID++
	} else if role.ID >= r.nextRoleID {
		r.nextRoleID = role.ID + 1
	}
	stored := role
	r.roles[role.ID] = &stored
	return &stored
}

func (r *stubServiceRepo) UserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	return NewPermissionSet(), nil
}

func (r *stubServiceRepo) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range r.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (r *stubServiceRepo) GetRole(ctx context.Context, id int64) (*Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (r *stubServiceRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.permissions, nil
}

func (r *stubServiceRepo) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return r.rolePermissions[roleID], nil
}

func (r *stubServiceRepo) ListUserAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	return r.assignments[userID], nil
}

func (r *stubServiceRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txError != nil {
		return r.txError
	}
	return fn(ctx, &stubTxRepo{repo: r})
}

type stubTxRepo struct {
	repo *stubServiceRepo
}

func (t *stubTxRepo) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	for _, role := range t.repo.roles {
		if role.Name == name {
			return nil, shared.ErrDuplicate
		}
	}
	return t.repo.addRole(Role{Name: name, Description: description, IsActive: true}), nil
}

func (t *stubTxRepo) UpdateRole(ctx context.Context, role Role) error {
	if _, ok := t.repo.roles[role.ID]; !ok {
		return shared.ErrNotFound
	}
	stored := role
	t.repo.roles[role.ID] = &stored
	return nil
}

func (t *stubTxRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := t.repo.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.repo.roles, id)
	return nil
}

func (t *stubTxRepo) CreatePermission(ctx context.Context, p Permission) (*Permission, error) {
	p.ID = int64(len(t.repo.permissions) + 1)
	t.repo.permissions = append(t.repo.permissions, p)
	return &p, nil
}

func (t *stubTxRepo) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	perms := make([]Permission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		perms = append(perms, Permission{ID: id})
	}
	t.repo.rolePermissions[roleID] = perms
	return nil
}

func (t *stubTxRepo) AssignRole(ctx context.Context, a Assignment) error {
	a.IsActive = true
	t.repo.assignments[a.UserID] = append(t.repo.assignments[a.UserID], a)
	return nil
}

func (t *stubTxRepo) RevokeRole(ctx context.Context, userID, roleID, revokedBy int64) error {
	for i, a := range t.repo.assignments[userID] {
		if a.RoleID == roleID && a.IsActive {
			t.repo.assignments[userID][i].IsActive = false
			t.repo.assignments[userID][i].RevokedBy = &revokedBy
			return nil
		}
	}
	return shared.ErrNotFound
}

func (t *stubTxRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func newServiceUnderTest(t *testing.T) (*Service, *stubServiceRepo, *Cache) {
	t.Helper()
	repo := newStubServiceRepo()
	cache := NewCache(5 * time.Minute)
	return NewService(repo, cache, nil), repo, cache
}

func TestCreateRoleRecordsAudit(t *testing.T) {
	svc, repo, _ := newServiceUnderTest(t)

	role, err := svc.CreateRole(context.Background(), 1, " Operators ", "shop floor staff")
	require.NoError(t, err)
	assert.Equal(t, "Operators", role.Name)
	assert.False(t, role.IsSystem)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "role.create", repo.audits[0].Action)
	assert.Equal(t, int64(1), repo.audits[0].ActorID)
}

func TestCreateRoleRejectsBlankName(t *testing.T) {
	svc, repo, _ := newServiceUnderTest(t)

	_, err := svc.CreateRole(context.Background(), 1, "   ", "")
	require.Error(t, err)
	assert.Empty(t, repo.audits)
}

func TestUpdateRoleProtectsSystemRoleName(t *testing.T) {
	svc, repo, _ := newServiceUnderTest(t)
	admin := repo.addRole(Role{Name: "Administrator", IsSystem: true, IsActive: true})

	_, err := svc.UpdateRole(context.Background(), 1, admin.ID, "Renamed", "", true)
	assert.ErrorIs(t, err, shared.ErrSystemRole)

	// Description edits to a system role are allowed.
	updated, err := svc.UpdateRole(context.Background(), 1, admin.ID, "Administrator", "root access", true)
	require.NoError(t, err)
	assert.Equal(t, "root access", updated.Description)
}

func TestUpdateRoleClearsWholeCache(t *testing.T) {
	svc, repo, cache := newServiceUnderTest(t)
	role := repo.addRole(Role{Name: "Operators", IsActive: true})
	cache.Put(1, NewPermissionSet())
	cache.Put(2, NewPermissionSet())

	_, err := svc.UpdateRole(context.Background(), 9, role.ID, "Operators", "", false)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestDeleteRole(t *testing.T) {
	svc, repo, cache := newServiceUnderTest(t)
	system := repo.addRole(Role{Name: "Administrator", IsSystem: true, IsActive: true})
	normal := repo.addRole(Role{Name: "Operators", IsActive: true})
	cache.Put(1, NewPermissionSet())

	err := svc.DeleteRole(context.Background(), 9, system.ID)
	assert.ErrorIs(t, err, shared.ErrSystemRole)
	assert.Equal(t, 1, cache.Len())

	err = svc.DeleteRole(context.Background(), 9, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	_, err = svc.GetRole(context.Background(), normal.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetRolePermissionsInvalidatesAllAndAudits(t *testing.T) {
	svc, repo, cache := newServiceUnderTest(t)
	role := repo.addRole(Role{Name: "Operators", IsActive: true})
	repo.rolePermissions[role.ID] = []Permission{{ID: 10}, {ID: 11}}
	cache.Put(1, NewPermissionSet())
	cache.Put(2, NewPermissionSet())

	err := svc.SetRolePermissions(context.Background(), 9, role.ID, []int64{11, 12})
	require.NoError(t, err)

	assert.Equal(t, 0, cache.Len())
	require.Len(t, repo.audits, 1)
	audit := repo.audits[0]
	assert.Equal(t, "role.permissions.replace", audit.Action)
	assert.Equal(t, []int64{10, 11}, audit.Delta["before"])
	assert.Equal(t, []int64{11, 12}, audit.Delta["after"])
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	svc, _, cache := newServiceUnderTest(t)
	cache.Put(1, NewPermissionSet())

	err := svc.SetRolePermissions(context.Background(), 9, 404, []int64{1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 1, cache.Len())
}

func TestAssignRoleInvalidatesOnlyThatUser(t *testing.T) {
	svc, repo, cache := newServiceUnderTest(t)
	role := repo.addRole(Role{Name: "Operators", IsActive: true})
	cache.Put(7, NewPermissionSet())
	cache.Put(8, NewPermissionSet())

	expires := time.Now().Add(24 * time.Hour)
	err := svc.AssignRole(context.Background(), 9, 7, role.ID, &expires)
	require.NoError(t, err)

	_, ok := cache.Get(7)
	assert.False(t, ok)
	_, ok = cache.Get(8)
	assert.True(t, ok)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "role.assign", repo.audits[0].Action)
	assert.Contains(t, repo.audits[0].Delta, "expires_at")
}

func TestRevokeRoleInvalidatesUser(t *testing.T) {
	svc, repo, cache := newServiceUnderTest(t)
	role := repo.addRole(Role{Name: "Operators", IsActive: true})
	require.NoError(t, svc.AssignRole(context.Background(), 9, 7, role.ID, nil))
	cache.Put(7, NewPermissionSet())

	err := svc.RevokeRole(context.Background(), 9, 7, role.ID)
	require.NoError(t, err)

	_, ok := cache.Get(7)
	assert.False(t, ok)
	require.Len(t, repo.audits, 2)
	assert.Equal(t, "role.revoke", repo.audits[1].Action)
}

func TestRevokeRoleMissingAssignment(t *testing.T) {
	svc, _, _ := newServiceUnderTest(t)

	err := svc.RevokeRole(context.Background(), 9, 7, 300)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
