package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRoleService(t *testing.T, store RoleStore) *RoleService {
	t.Helper()
	svc, err := NewRoleService(store, testTable(t),
		WithRoleClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("NewRoleService: %v", err)
	}
	return svc
}

func TestCreateRoleNormalizesAndDelegates(t *testing.T) {
	var stored Role
	store := &stubRoleStore{
		createFn: func(_ context.Context, role Role) (Role, error) {
			stored = role
			return role, nil
		},
	}
	svc := newTestRoleService(t, store)

	role, err := svc.CreateRole(context.Background(), " ws-1 ", "  Viewer ", " read only ", []PermissionGrant{{
		Permission:  PermDeploymentView,
		Scope:       ScopeSpecific,
		ResourceIDs: []string{"dep-a", "dep-a", " dep-b ", ""},
	}})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.ID == "" {
		t.Fatalf("expected generated id")
	}
	if stored.WorkspaceID != "ws-1" || stored.Name != "Viewer" || stored.Description != "read only" {
		t.Fatalf("input not trimmed: %+v", stored)
	}
	if len(stored.Grants) != 1 || len(stored.Grants[0].ResourceIDs) != 2 {
		t.Fatalf("resource ids not deduplicated: %+v", stored.Grants)
	}
	if stored.CreatedAt.IsZero() || !stored.CreatedAt.Equal(stored.UpdatedAt) {
		t.Fatalf("timestamps not set: %+v", stored)
	}
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	svc := newTestRoleService(t, &stubRoleStore{})
	_, err := svc.CreateRole(context.Background(), "ws-1", "Bad", "", []PermissionGrant{{
		Permission: Permission("made:up"),
		Scope:      ScopeSpecific,
	}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRoleRejectsUnknownScopeAndType(t *testing.T) {
	svc := newTestRoleService(t, &stubRoleStore{})

	_, err := svc.CreateRole(context.Background(), "ws-1", "Bad", "", []PermissionGrant{{
		Permission: PermDeploymentView,
		Scope:      GrantScope("sometimes"),
	}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown scope: expected ErrInvalidInput, got %v", err)
	}

	_, err = svc.CreateRole(context.Background(), "ws-1", "Bad", "", []PermissionGrant{{
		Permission:   PermDeploymentView,
		Scope:        ScopeAllExcept,
		ResourceType: ResourceType("starship"),
	}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown resource type: expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateRoleClearsTypeOnSpecificScope(t *testing.T) {
	var stored Role
	store := &stubRoleStore{
		createFn: func(_ context.Context, role Role) (Role, error) {
			stored = role
			return role, nil
		},
	}
	svc := newTestRoleService(t, store)
	_, err := svc.CreateRole(context.Background(), "ws-1", "Viewer", "", []PermissionGrant{{
		Permission:   PermDeploymentView,
		Scope:        ScopeSpecific,
		ResourceType: TypeDeployment,
		ResourceIDs:  []string{"dep-a"},
	}})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if stored.Grants[0].ResourceType != "" {
		t.Fatalf("resource type should be irrelevant for specific scope: %+v", stored.Grants[0])
	}
}

func TestUpdateRoleValidatesReplacementGrants(t *testing.T) {
	svc := newTestRoleService(t, &stubRoleStore{})
	bad := []PermissionGrant{{Permission: Permission("made:up"), Scope: ScopeSpecific}}
	_, err := svc.UpdateRole(context.Background(), "ws-1", "r-1", RoleUpdate{Grants: &bad})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	empty := ""
	_, err = svc.UpdateRole(context.Background(), "ws-1", "r-1", RoleUpdate{Name: &empty})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: expected ErrInvalidInput, got %v", err)
	}
}

func TestRoleServiceRequiresIdentifiers(t *testing.T) {
	svc := newTestRoleService(t, &stubRoleStore{})
	if _, err := svc.CreateRole(context.Background(), "", "Viewer", "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing workspace: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.GetRole(context.Background(), "ws-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing role id: expected ErrInvalidInput, got %v", err)
	}
	if err := svc.DeleteRole(context.Background(), "", "r-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing workspace on delete: expected ErrInvalidInput, got %v", err)
	}
}
