package auth

import "time"

// User is the profile summary embedded in access tokens. Credential
// material never appears here; password hashes stay behind the
// CredentialStore interface.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Workspace is a tenant. Every resource carries the id of exactly one
// workspace as its owner, and authorization never crosses that boundary.
type Workspace struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SuperAdminID string    `json:"superAdminId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WorkspaceMembership ties a user to a workspace. A super-admin membership
// bypasses grant evaluation entirely within that workspace.
type WorkspaceMembership struct {
	UserID       string
	WorkspaceID  string
	IsSuperAdmin bool
	RoleIDs      []string
}

// GrantScope selects how a PermissionGrant maps onto resources. The variant
// is fixed when the grant is created and never mixed.
type GrantScope string

const (
	// ScopeSpecific applies the permission only to the listed resources.
	ScopeSpecific GrantScope = "specificResources"
	// ScopeAllExcept applies the permission to every resource of
	// ResourceType in the workspace except the listed ones. An empty list
	// means no exceptions.
	ScopeAllExcept GrantScope = "allExceptResources"
)

// PermissionGrant is a (permission, scope) pair attached to a role.
// ResourceType is only meaningful for ScopeAllExcept. ResourceIDs holds the
// inclusion set for ScopeSpecific and the exception set for ScopeAllExcept.
type PermissionGrant struct {
	Permission   Permission   `json:"permission"`
	Scope        GrantScope   `json:"scope"`
	ResourceType ResourceType `json:"resourceType,omitempty"`
	ResourceIDs  []string     `json:"resourceIds,omitempty"`
}

// Role groups permission grants within a workspace.
type Role struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspaceId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Grants      []PermissionGrant `json:"grants"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// WorkspacePermissionSnapshot is the materialized result of resolving a
// membership at token-issuance time. Embedding it verbatim in access tokens
// is what keeps their validation free of database reads.
type WorkspacePermissionSnapshot struct {
	IsSuperAdmin bool              `json:"isSuperAdmin"`
	Grants       []PermissionGrant `json:"grants,omitempty"`
}

// APIToken is the persisted record of a long-lived opaque credential. The
// plaintext secret is returned exactly once at creation; only its hash is
// stored, so every use requires a lookup and revocation is immediate.
type APIToken struct {
	ID         string                                 `json:"id"`
	UserID     string                                 `json:"userId"`
	Name       string                                 `json:"name"`
	TokenHash  string                                 `json:"-"`
	CreatedAt  time.Time                              `json:"createdAt"`
	NotBefore  time.Time                              `json:"notBefore"`
	Expiry     *time.Time                             `json:"expiry,omitempty"`
	AllowedIPs []string                               `json:"allowedIps,omitempty"`
	Grants     map[string]WorkspacePermissionSnapshot `json:"grants"`
	Revoked    bool                                   `json:"revoked"`
}

// Resource identifies the target of an authorization decision. OwnerID is
// the workspace the resource belongs to, supplied by the resource directory.
type Resource struct {
	ID      string
	OwnerID string
	TypeID  ResourceType
}
