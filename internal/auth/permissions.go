package auth

import "fmt"

// Permission is a closed enumeration of everything a grant can allow. New
// permissions are added here and seeded into storage; grants referencing a
// key outside this set are rejected at role creation.
type Permission string

const (
	PermDeploymentCreate Permission = "deployment:create"
	PermDeploymentView   Permission = "deployment:view"
	PermDeploymentEdit   Permission = "deployment:edit"
	PermDeploymentDelete Permission = "deployment:delete"

	PermDatabaseCreate Permission = "database:create"
	PermDatabaseView   Permission = "database:view"
	PermDatabaseDelete Permission = "database:delete"

	PermStaticSiteCreate Permission = "staticSite:create"
	PermStaticSiteView   Permission = "staticSite:view"
	PermStaticSiteEdit   Permission = "staticSite:edit"
	PermStaticSiteDelete Permission = "staticSite:delete"

	PermRegistryPush   Permission = "containerRegistry:push"
	PermRegistryPull   Permission = "containerRegistry:pull"
	PermRegistryDelete Permission = "containerRegistry:delete"

	PermSecretCreate Permission = "secret:create"
	PermSecretView   Permission = "secret:view"
	PermSecretEdit   Permission = "secret:edit"
	PermSecretDelete Permission = "secret:delete"

	PermDomainAdd    Permission = "domain:add"
	PermDomainView   Permission = "domain:view"
	PermDomainVerify Permission = "domain:verify"
	PermDomainDelete Permission = "domain:delete"

	PermWorkspaceEdit   Permission = "workspace:edit"
	PermWorkspaceDelete Permission = "workspace:delete"

	PermRoleList   Permission = "rbac:role:list"
	PermRoleCreate Permission = "rbac:role:create"
	PermRoleEdit   Permission = "rbac:role:edit"
	PermRoleDelete Permission = "rbac:role:delete"
)

// ResourceType is the category of a resource, used for type-wide grants.
type ResourceType string

const (
	TypeWorkspace          ResourceType = "workspace"
	TypeDeployment         ResourceType = "deployment"
	TypeDatabase           ResourceType = "database"
	TypeStaticSite         ResourceType = "staticSite"
	TypeRegistryRepository ResourceType = "containerRegistryRepository"
	TypeSecret             ResourceType = "secret"
	TypeDomain             ResourceType = "domain"
)

// AllPermissions lists the full permission catalog in seed order.
func AllPermissions() []Permission {
	return []Permission{
		PermDeploymentCreate, PermDeploymentView, PermDeploymentEdit, PermDeploymentDelete,
		PermDatabaseCreate, PermDatabaseView, PermDatabaseDelete,
		PermStaticSiteCreate, PermStaticSiteView, PermStaticSiteEdit, PermStaticSiteDelete,
		PermRegistryPush, PermRegistryPull, PermRegistryDelete,
		PermSecretCreate, PermSecretView, PermSecretEdit, PermSecretDelete,
		PermDomainAdd, PermDomainView, PermDomainVerify, PermDomainDelete,
		PermWorkspaceEdit, PermWorkspaceDelete,
		PermRoleList, PermRoleCreate, PermRoleEdit, PermRoleDelete,
	}
}

// AllResourceTypes lists every resource category grants can range over.
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		TypeWorkspace,
		TypeDeployment,
		TypeDatabase,
		TypeStaticSite,
		TypeRegistryRepository,
		TypeSecret,
		TypeDomain,
	}
}

// Table maps the closed permission and resource-type sets to the stable ids
// they were seeded with. It is built once at startup from storage and passed
// by shared reference into the components that need it; there is no lazily
// initialized global state.
type Table struct {
	permissions   map[Permission]string
	resourceTypes map[ResourceType]string
}

// NewTable builds the lookup table, verifying that storage knows every entry
// of the in-code catalog. A missing entry means the seeds have not run.
func NewTable(permissionIDs map[Permission]string, resourceTypeIDs map[ResourceType]string) (*Table, error) {
	perms := make(map[Permission]string, len(permissionIDs))
	for _, p := range AllPermissions() {
		id, ok := permissionIDs[p]
		if ok && id != "" {
			perms[p] = id
			continue
		}
		return nil, fmt.Errorf("%w: permission %s has no seeded id", ErrInvalidInput, p)
	}
	types := make(map[ResourceType]string, len(resourceTypeIDs))
	for _, t := range AllResourceTypes() {
		id, ok := resourceTypeIDs[t]
		if ok && id != "" {
			types[t] = id
			continue
		}
		return nil, fmt.Errorf("%w: resource type %s has no seeded id", ErrInvalidInput, t)
	}
	return &Table{permissions: perms, resourceTypes: types}, nil
}

// PermissionID returns the seeded id for a permission.
func (t *Table) PermissionID(p Permission) (string, bool) {
	id, ok := t.permissions[p]
	return id, ok
}

// ResourceTypeID returns the seeded id for a resource type.
func (t *Table) ResourceTypeID(rt ResourceType) (string, bool) {
	id, ok := t.resourceTypes[rt]
	return id, ok
}

// KnownPermission reports whether p belongs to the catalog.
func (t *Table) KnownPermission(p Permission) bool {
	_, ok := t.permissions[p]
	return ok
}

// KnownResourceType reports whether rt belongs to the catalog.
func (t *Table) KnownResourceType(rt ResourceType) bool {
	_, ok := t.resourceTypes[rt]
	return ok
}
