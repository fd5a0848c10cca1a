package auth

import (
	"context"
	"time"
)

// RoleStore persists roles and their grants. Implementations must write a
// role's grant rows and resource-set rows in one transaction: a role is
// never observable with a grant's scope recorded but its resources missing.
type RoleStore interface {
	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, workspaceID, roleID string) (Role, error)
	ListRoles(ctx context.Context, workspaceID string) ([]Role, error)
	UpdateRole(ctx context.Context, workspaceID, roleID string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, workspaceID, roleID string) error
}

// RoleUpdate carries partial role changes. A non-nil Grants replaces the
// whole grant set atomically.
type RoleUpdate struct {
	Name        *string
	Description *string
	Grants      *[]PermissionGrant
}

// MembershipStore reads workspace memberships and role assignments.
type MembershipStore interface {
	Membership(ctx context.Context, userID, workspaceID string) (WorkspaceMembership, error)
	Memberships(ctx context.Context, userID string) ([]WorkspaceMembership, error)
}

// APITokenStore persists API token records.
type APITokenStore interface {
	CreateAPIToken(ctx context.Context, token APIToken) error
	GetAPIToken(ctx context.Context, id string) (APIToken, error)
	ListAPITokens(ctx context.Context, userID string) ([]APIToken, error)
	UpdateAPITokenHash(ctx context.Context, id, tokenHash string) error
	RevokeAPIToken(ctx context.Context, id string) error
}

// UserStore reads user profiles.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
}

// CredentialStore verifies a user's credential. Password storage and MFA
// live outside this core.
type CredentialStore interface {
	Verify(ctx context.Context, userID, plaintext string) (bool, error)
}

// ResourceDirectory reports which workspace owns a resource. The inventory
// service implements it; the authorization engine only consumes the owner id
// for its tenant-isolation gate.
type ResourceDirectory interface {
	OwnerOf(ctx context.Context, resourceID string) (string, error)
}

// Clock is the injectable time source used across the package.
type Clock func() time.Time
