package auth

// AuthenticationData is the uniform view over a validated credential. Both
// access tokens and API tokens normalize into it; callers never branch on
// the token kind past this point.
type AuthenticationData interface {
	// LoginID identifies the login session (or the API token standing in
	// for one). Revoking it invalidates this credential only.
	LoginID() string
	// UserID identifies the authenticated user.
	UserID() string
	// WorkspacePermissions returns the permission snapshot for a workspace,
	// reporting false when the credential carries nothing for it.
	WorkspacePermissions(workspaceID string) (WorkspacePermissionSnapshot, bool)
}

// apiTokenData adapts a validated APIToken record to AuthenticationData.
type apiTokenData struct {
	token APIToken
}

func (d apiTokenData) LoginID() string { return d.token.ID }

func (d apiTokenData) UserID() string { return d.token.UserID }

func (d apiTokenData) WorkspacePermissions(workspaceID string) (WorkspacePermissionSnapshot, bool) {
	snap, ok := d.token.Grants[workspaceID]
	return snap, ok
}
