package roles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classward/classward/internal/roles"
	"github.com/classward/classward/internal/shared"
)

type memRoleRepo struct {
	byName map[string]roles.Role
}

func (m *memRoleRepo) Get(_ context.Context, name string) (roles.Role, error) {
	role, ok := m.byName[name]
	if !ok {
		return roles.Role{}, shared.E(shared.KindNotFound, "role not found")
	}
	return role, nil
}

func (m *memRoleRepo) List(_ context.Context) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(m.byName))
	for _, role := range m.byName {
		out = append(out, role)
	}
	return out, nil
}

func (m *memRoleRepo) SetPermissions(_ context.Context, name string, permissions []string) (roles.Role, error) {
	role, ok := m.byName[name]
	if !ok {
		return roles.Role{}, shared.E(shared.KindNotFound, "role not found")
	}
	role.Permissions = permissions
	m.byName[name] = role
	return role, nil
}

func newService() (*roles.Service, *memRoleRepo) {
	repo := &memRoleRepo{byName: map[string]roles.Role{
		shared.RoleTeacher: {
			Name:        shared.RoleTeacher,
			Permissions: []string{shared.PermGroupsViewOwn},
			IsActive:    true,
		},
	}}
	return roles.NewService(repo), repo
}

func TestSetPermissionsNormalizes(t *testing.T) {
	service, repo := newService()

	role, err := service.SetPermissions(context.Background(), shared.RoleTeacher,
		[]string{" Groups.View.Own ", "transfers.review.own", "GROUPS.VIEW.OWN", ""})
	require.NoError(t, err)
	require.Equal(t, []string{"groups.view.own", "transfers.review.own"}, role.Permissions)
	require.Equal(t, role.Permissions, repo.byName[shared.RoleTeacher].Permissions)
}

func TestSetPermissionsRejectsEmptySet(t *testing.T) {
	service, _ := newService()

	_, err := service.SetPermissions(context.Background(), shared.RoleTeacher, []string{"  ", ""})
	require.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = service.SetPermissions(context.Background(), "ghost", []string{"groups.view.own"})
	require.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestHasActivePermission(t *testing.T) {
	service, _ := newService()

	role := roles.Role{
		Name:        shared.RoleTeacher,
		Permissions: []string{shared.PermGroupsViewOwn},
		IsActive:    true,
	}
	require.True(t, service.HasActivePermission(role, shared.PermGroupsViewOwn))
	require.False(t, service.HasActivePermission(role, shared.PermGroupsManage))

	role.IsActive = false
	require.False(t, service.HasActivePermission(role, shared.PermGroupsViewOwn))
}

func TestCatalogCoversKnownCodes(t *testing.T) {
	seen := map[string]bool{}
	for _, entry := range shared.Catalog() {
		require.NotEmpty(t, entry.Code)
		require.NotEmpty(t, entry.Category)
		require.False(t, seen[entry.Code], "duplicate code %s", entry.Code)
		seen[entry.Code] = true
	}
	require.True(t, seen[shared.PermTransfersCreate])
	require.True(t, seen[shared.PermAuditView])
}
