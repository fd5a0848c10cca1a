package httpapi

import (
	"errors"
	"net/http"

	"nimbus.cloud/internal/audit"
	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/obs"
)

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.sessions.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			// unknown user and wrong password read identically
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "sign-in failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.sign_in", map[string]any{
		"user_id":  result.User.ID,
		"login_id": result.LoginID,
	})
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	data, ok := a.requireData(w, r)
	if !ok {
		return
	}
	// login markers only gate access tokens; an API token has its own
	// revocation endpoint
	if tokenKind(r.Header.Get(authHeader)) == "api_token" {
		writeError(w, r, http.StatusBadRequest, "sign-out requires an access token")
		return
	}

	if err := a.sessions.SignOut(r.Context(), data.LoginID()); err != nil {
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	obs.ObserveRevocation("login")
	_ = audit.LogEvent(r.Context(), "auth.sign_out", map[string]any{
		"login_id": data.LoginID(),
	})
	w.WriteHeader(http.StatusNoContent)
}
