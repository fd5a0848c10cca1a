package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nimbus.cloud/internal/audit"
	"nimbus.cloud/internal/auth"
)

type createAPITokenRequest struct {
	Name       string                                      `json:"name"`
	Grants     map[string]auth.WorkspacePermissionSnapshot `json:"grants"`
	NotBefore  *time.Time                                  `json:"notBefore"`
	Expiry     *time.Time                                  `json:"expiry"`
	AllowedIPs []string                                    `json:"allowedIps"`
}

type createAPITokenResponse struct {
	Token auth.APIToken `json:"token"`
	// Secret is the full credential, shown exactly once.
	Secret string `json:"secret"`
}

func (a *API) handleAPITokensCollection(w http.ResponseWriter, r *http.Request) {
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		tokens, err := a.tokens.ListAPITokens(r.Context(), data.UserID())
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		if tokens == nil {
			tokens = []auth.APIToken{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})

	case http.MethodPost:
		var req createAPITokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		// a token can never grant beyond what the caller holds: every
		// workspace in the request must be carried by the credential, a
		// super-admin grant requires a super-admin caller, and each granted
		// permission must appear in the caller's own snapshot
		for workspaceID, snapshot := range req.Grants {
			have, ok := data.WorkspacePermissions(workspaceID)
			if !ok {
				writeError(w, r, http.StatusForbidden, "cannot grant permissions in a workspace you have none in")
				return
			}
			if snapshot.IsSuperAdmin && !have.IsSuperAdmin {
				writeError(w, r, http.StatusForbidden, "cannot grant super admin without holding it")
				return
			}
			if have.IsSuperAdmin {
				continue
			}
			for _, grant := range snapshot.Grants {
				if !holdsPermission(have.Grants, grant.Permission) {
					writeError(w, r, http.StatusForbidden, "cannot grant a permission you do not hold")
					return
				}
			}
		}
		var nbf time.Time
		if req.NotBefore != nil {
			nbf = *req.NotBefore
		}
		token, secret, err := a.issuer.IssueAPIToken(r.Context(), auth.APITokenRequest{
			UserID:     data.UserID(),
			Name:       req.Name,
			Grants:     req.Grants,
			NotBefore:  nbf,
			Expiry:     req.Expiry,
			AllowedIPs: req.AllowedIPs,
		})
		if err != nil {
			handleAPITokenError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "token.api.create", map[string]any{
			"token_id": token.ID,
			"name":     token.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/user/api-tokens/%s", token.ID))
		writeJSON(w, http.StatusCreated, createAPITokenResponse{Token: token, Secret: secret})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAPITokenResource(w http.ResponseWriter, r *http.Request) {
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/user/api-tokens/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	tokenID := parts[0]

	// ownership gate first so a foreign id reads as absent
	token, err := a.tokens.GetAPIToken(r.Context(), tokenID)
	if err != nil {
		handleAPITokenError(w, r, err)
		return
	}
	if token.UserID != data.UserID() {
		writeError(w, r, http.StatusNotFound, "token not found")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, token)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := a.issuer.RevokeAPIToken(r.Context(), tokenID); err != nil {
			handleAPITokenError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "token.api.revoke", map[string]any{
			"token_id": tokenID,
		})
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "regenerate" && r.Method == http.MethodPost:
		if token.Revoked {
			writeError(w, r, http.StatusConflict, "token is revoked")
			return
		}
		secret, err := a.issuer.RegenerateAPIToken(r.Context(), tokenID)
		if err != nil {
			handleAPITokenError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "token.api.regenerate", map[string]any{
			"token_id": tokenID,
		})
		writeJSON(w, http.StatusOK, map[string]any{"secret": secret})

	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "regenerate"):
		writeError(w, r, http.StatusNotFound, "resource not found")

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete, http.MethodPost)
	}
}

func holdsPermission(grants []auth.PermissionGrant, perm auth.Permission) bool {
	for _, g := range grants {
		if g.Permission == perm {
			return true
		}
	}
	return false
}

func handleAPITokenError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "token not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "token conflict")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
	}
}
