package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/obs"
)

const authHeader = "Authorization"

var publicPaths = []string{
	"/v1/auth/sign-in",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth authenticates every non-public request. All credential failures
// collapse into one generic 401 body; the precise reason is only logged, so
// probing responses cannot distinguish an expired token from a revoked one
// or from garbage.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		data, err := a.validator.Validate(r.Context(), r.Header.Get(authHeader), clientIP(r))
		if err != nil {
			kind := tokenKind(r.Header.Get(authHeader))
			if errors.Is(err, auth.ErrUnavailable) {
				obs.ObserveTokenValidation(kind, "unavailable")
				obs.LogAuthFailure(kind, err.Error())
				writeError(w, r, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			obs.ObserveTokenValidation(kind, "rejected")
			obs.LogAuthFailure(kind, err.Error())
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		obs.ObserveTokenValidation(tokenKind(r.Header.Get(authHeader)), "ok")
		ctx := auth.ContextWithData(r.Context(), data)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireData returns the authenticated caller or renders a 401. Routes
// behind withAuth always have it; the check keeps handlers safe when wired
// differently in tests.
func (a *API) requireData(w http.ResponseWriter, r *http.Request) (auth.AuthenticationData, bool) {
	data, ok := auth.DataFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return data, true
}

// authorize runs the engine for a workspace-owned resource and renders the
// 403 itself on deny.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, data auth.AuthenticationData, workspaceID string, resource auth.Resource, perm auth.Permission) bool {
	allowed := a.engine.Authorize(data, workspaceID, resource, perm)
	obs.ObserveDecision(allowed)
	if !allowed {
		writeError(w, r, http.StatusForbidden, "forbidden")
	}
	return allowed
}

func tokenKind(header string) string {
	raw := strings.TrimSpace(header)
	if after, ok := strings.CutPrefix(raw, "Bearer "); ok {
		raw = strings.TrimSpace(after)
	}
	if strings.HasPrefix(raw, auth.APITokenPrefix) {
		return "api_token"
	}
	return "access_token"
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
