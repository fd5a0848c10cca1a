package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolver flattens the roles assigned to a user within a workspace into a
// single snapshot suitable for embedding into an access token.
type Resolver struct {
	memberships MembershipStore
	roles       RoleStore
}

// NewResolver constructs a Resolver.
func NewResolver(memberships MembershipStore, roles RoleStore) (*Resolver, error) {
	if memberships == nil || roles == nil {
		return nil, errors.New("auth: membership and role stores are required")
	}
	return &Resolver{memberships: memberships, roles: roles}, nil
}

// Resolve materializes the caller's permissions in one workspace. The union
// is additive only: when two roles grant the same permission with different
// scopes, both scopes are retained and evaluated independently later. A
// grant can narrow itself, never another role's grant.
func (r *Resolver) Resolve(ctx context.Context, userID, workspaceID string) (WorkspacePermissionSnapshot, error) {
	userID = strings.TrimSpace(userID)
	workspaceID = strings.TrimSpace(workspaceID)
	if userID == "" || workspaceID == "" {
		return WorkspacePermissionSnapshot{}, fmt.Errorf("%w: user_id and workspace_id are required", ErrInvalidInput)
	}
	membership, err := r.memberships.Membership(ctx, userID, workspaceID)
	if err != nil {
		return WorkspacePermissionSnapshot{}, err
	}
	return r.snapshot(ctx, membership)
}

// ResolveAll materializes snapshots for every workspace the user belongs to,
// keyed by workspace id.
func (r *Resolver) ResolveAll(ctx context.Context, userID string) (map[string]WorkspacePermissionSnapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	memberships, err := r.memberships.Memberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make(map[string]WorkspacePermissionSnapshot, len(memberships))
	for _, m := range memberships {
		snapshot, err := r.snapshot(ctx, m)
		if err != nil {
			return nil, err
		}
		result[m.WorkspaceID] = snapshot
	}
	return result, nil
}

func (r *Resolver) snapshot(ctx context.Context, membership WorkspaceMembership) (WorkspacePermissionSnapshot, error) {
	if membership.IsSuperAdmin {
		// grants are irrelevant for a super admin
		return WorkspacePermissionSnapshot{IsSuperAdmin: true}, nil
	}
	var grants []PermissionGrant
	for _, roleID := range membership.RoleIDs {
		role, err := r.roles.GetRole(ctx, membership.WorkspaceID, roleID)
		if err != nil {
			// a role deleted while its assignment row still lingers
			// contributes nothing
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return WorkspacePermissionSnapshot{}, err
		}
		grants = append(grants, role.Grants...)
	}
	return WorkspacePermissionSnapshot{Grants: grants}, nil
}
