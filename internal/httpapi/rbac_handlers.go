package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nimbus.cloud/internal/audit"
	"nimbus.cloud/internal/auth"
)

type createRoleRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Grants      []auth.PermissionGrant `json:"grants"`
}

type updateRoleRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Grants      *[]auth.PermissionGrant `json:"grants"`
}

func (a *API) handleWorkspaceScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/workspaces/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	workspaceID := parts[0]
	switch {
	case parts[1] == "roles" && len(parts) == 2:
		a.handleRolesCollection(w, r, workspaceID)
	case parts[1] == "roles" && len(parts) == 3:
		a.handleRoleResource(w, r, workspaceID, parts[2])
	case parts[1] == "permissions" && len(parts) == 2:
		a.handleWorkspacePermissions(w, r, workspaceID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request, workspaceID string) {
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}
	workspace := auth.Resource{ID: workspaceID, OwnerID: workspaceID, TypeID: auth.TypeWorkspace}

	switch r.Method {
	case http.MethodGet:
		if !a.authorize(w, r, data, workspaceID, workspace, auth.PermRoleList) {
			return
		}
		roles, err := a.roles.ListRoles(r.Context(), workspaceID)
		if err != nil {
			handleRoleError(w, r, err)
			return
		}
		if roles == nil {
			roles = []auth.Role{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})

	case http.MethodPost:
		if !a.authorize(w, r, data, workspaceID, workspace, auth.PermRoleCreate) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.roles.CreateRole(r.Context(), workspaceID, req.Name, req.Description, req.Grants)
		if err != nil {
			handleRoleError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.create", map[string]any{
			"workspace_id": workspaceID,
			"role_id":      role.ID,
			"name":         role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/workspaces/%s/roles/%s", workspaceID, role.ID))
		writeJSON(w, http.StatusCreated, role)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request, workspaceID, roleID string) {
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}
	workspace := auth.Resource{ID: workspaceID, OwnerID: workspaceID, TypeID: auth.TypeWorkspace}

	switch r.Method {
	case http.MethodGet:
		if !a.authorize(w, r, data, workspaceID, workspace, auth.PermRoleList) {
			return
		}
		role, err := a.roles.GetRole(r.Context(), workspaceID, roleID)
		if err != nil {
			handleRoleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)

	case http.MethodPatch:
		if !a.authorize(w, r, data, workspaceID, workspace, auth.PermRoleEdit) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.roles.UpdateRole(r.Context(), workspaceID, roleID, auth.RoleUpdate{
			Name:        req.Name,
			Description: req.Description,
			Grants:      req.Grants,
		})
		if err != nil {
			handleRoleError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.update", map[string]any{
			"workspace_id": workspaceID,
			"role_id":      roleID,
		})
		writeJSON(w, http.StatusOK, role)

	case http.MethodDelete:
		if !a.authorize(w, r, data, workspaceID, workspace, auth.PermRoleDelete) {
			return
		}
		if err := a.roles.DeleteRole(r.Context(), workspaceID, roleID); err != nil {
			handleRoleError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "rbac.role.delete", map[string]any{
			"workspace_id": workspaceID,
			"role_id":      roleID,
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// handleWorkspacePermissions returns the caller's own snapshot for one
// workspace, exactly as embedded in the presented credential.
func (a *API) handleWorkspacePermissions(w http.ResponseWriter, r *http.Request, workspaceID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}
	snapshot, ok := data.WorkspacePermissions(workspaceID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "no permissions in workspace")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspaceId": workspaceID,
		"permissions": snapshot,
	})
}

func handleRoleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "role name already in use")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "role not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "role operation failed")
	}
}
