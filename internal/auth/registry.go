package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nimbus.cloud/internal/ids"
)

// RoleService is the validating front of the role registry. It checks that
// grants reference the closed permission catalog before the store writes
// them, and normalizes input the same way for every caller.
type RoleService struct {
	store RoleStore
	table *Table
	now   Clock
}

// NewRoleService constructs a RoleService.
func NewRoleService(store RoleStore, table *Table, opts ...RoleServiceOption) (*RoleService, error) {
	if store == nil {
		return nil, errors.New("auth: role store is required")
	}
	if table == nil {
		return nil, errors.New("auth: permission table is required")
	}
	s := &RoleService{store: store, table: table, now: time.Now}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RoleServiceOption configures RoleService behavior.
type RoleServiceOption func(*RoleService) error

// WithRoleClock overrides the time source (useful for tests).
func WithRoleClock(fn Clock) RoleServiceOption {
	return func(s *RoleService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// CreateRole inserts a role with its grants in one atomic write. Duplicate
// names within a workspace surface as ErrConflict.
func (s *RoleService) CreateRole(ctx context.Context, workspaceID, name, description string, grants []PermissionGrant) (Role, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return Role{}, fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	normalized, err := s.normalizeGrants(grants)
	if err != nil {
		return Role{}, err
	}
	now := s.now().UTC()
	role := Role{
		ID:          ids.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Grants:      normalized,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.store.CreateRole(ctx, role)
}

// GetRole loads a role with its reconstructed grant set.
func (s *RoleService) GetRole(ctx context.Context, workspaceID, roleID string) (Role, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	roleID = strings.TrimSpace(roleID)
	if workspaceID == "" || roleID == "" {
		return Role{}, fmt.Errorf("%w: workspace_id and role_id are required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, workspaceID, roleID)
}

// ListRoles lists a workspace's roles.
func (s *RoleService) ListRoles(ctx context.Context, workspaceID string) ([]Role, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace_id is required", ErrInvalidInput)
	}
	return s.store.ListRoles(ctx, workspaceID)
}

// UpdateRole applies partial changes; a provided grant set replaces the old
// one atomically. Tokens already minted from the old snapshot keep it until
// they expire.
func (s *RoleService) UpdateRole(ctx context.Context, workspaceID, roleID string, upd RoleUpdate) (Role, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	roleID = strings.TrimSpace(roleID)
	if workspaceID == "" || roleID == "" {
		return Role{}, fmt.Errorf("%w: workspace_id and role_id are required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	if upd.Grants != nil {
		normalized, err := s.normalizeGrants(*upd.Grants)
		if err != nil {
			return Role{}, err
		}
		upd.Grants = &normalized
	}
	return s.store.UpdateRole(ctx, workspaceID, roleID, upd)
}

// DeleteRole removes a role and cascades its grants.
func (s *RoleService) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	workspaceID = strings.TrimSpace(workspaceID)
	roleID = strings.TrimSpace(roleID)
	if workspaceID == "" || roleID == "" {
		return fmt.Errorf("%w: workspace_id and role_id are required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, workspaceID, roleID)
}

func (s *RoleService) normalizeGrants(grants []PermissionGrant) ([]PermissionGrant, error) {
	out := make([]PermissionGrant, 0, len(grants))
	for _, g := range grants {
		if !s.table.KnownPermission(g.Permission) {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, g.Permission)
		}
		switch g.Scope {
		case ScopeSpecific:
			g.ResourceType = ""
		case ScopeAllExcept:
			if !s.table.KnownResourceType(g.ResourceType) {
				return nil, fmt.Errorf("%w: unknown resource type %q", ErrInvalidInput, g.ResourceType)
			}
		default:
			return nil, fmt.Errorf("%w: unknown grant scope %q", ErrInvalidInput, g.Scope)
		}
		g.ResourceIDs = dedupeStrings(g.ResourceIDs)
		out = append(out, g)
	}
	return out, nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
