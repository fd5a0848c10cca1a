package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Engine renders allow/deny decisions. It is a pure function over the
// credential's snapshot plus two immutable values fixed at startup: the
// permission table and the optional platform god user id. It holds no
// mutable state and is safe under arbitrary request parallelism.
type Engine struct {
	table     *Table
	godUserID string
}

// NewEngine constructs the engine. godUserID may be empty, which disables
// the platform break-glass bypass entirely. The id comes from trusted
// process configuration, never from request data.
func NewEngine(table *Table, godUserID string) (*Engine, error) {
	if table == nil {
		return nil, errors.New("auth: permission table is required")
	}
	return &Engine{table: table, godUserID: godUserID}, nil
}

// Authorize decides whether the authenticated caller may perform perm on the
// given resource within workspaceID.
//
// The tenant-isolation gate runs first and unconditionally: a resource owned
// by another workspace is denied before any bypass, including the god user.
func (e *Engine) Authorize(data AuthenticationData, workspaceID string, resource Resource, perm Permission) bool {
	if data == nil || workspaceID == "" {
		return false
	}
	if resource.OwnerID != workspaceID {
		return false
	}
	if e.godUserID != "" && data.UserID() == e.godUserID {
		return true
	}
	if !e.table.KnownPermission(perm) {
		return false
	}
	snapshot, ok := data.WorkspacePermissions(workspaceID)
	if !ok {
		return false
	}
	if snapshot.IsSuperAdmin {
		return true
	}
	for _, grant := range snapshot.Grants {
		if grant.Permission != perm {
			continue
		}
		switch grant.Scope {
		case ScopeSpecific:
			if slices.Contains(grant.ResourceIDs, resource.ID) {
				return true
			}
		case ScopeAllExcept:
			if grant.ResourceType == resource.TypeID && !slices.Contains(grant.ResourceIDs, resource.ID) {
				return true
			}
		}
	}
	return false
}

// AuthorizeOwned looks up the resource's owning workspace in the directory
// and then authorizes against it. Directory failures deny.
func (e *Engine) AuthorizeOwned(ctx context.Context, dir ResourceDirectory, data AuthenticationData, workspaceID string, resourceID string, typeID ResourceType, perm Permission) (bool, error) {
	if dir == nil {
		return false, errors.New("auth: resource directory is required")
	}
	ownerID, err := dir.OwnerOf(ctx, resourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("%w: resource directory: %v", ErrUnavailable, err)
	}
	resource := Resource{ID: resourceID, OwnerID: ownerID, TypeID: typeID}
	return e.Authorize(data, workspaceID, resource, perm), nil
}
