// Package httpapi is the HTTP surface of the authorization core. Routing
// stays on net/http's ServeMux with manual scoped dispatch; every mutating
// route is gated by the engine before business logic runs.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/obs"
)

// ReadyProbe checks the backing stores behind /readyz.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	validator *auth.Validator
	engine    *auth.Engine
	sessions  *auth.Service
	roles     *auth.RoleService
	issuer    *auth.Issuer
	tokens    auth.APITokenStore
}

// Deps carries the collaborators the API dispatches into.
type Deps struct {
	Validator *auth.Validator
	Engine    *auth.Engine
	Sessions  *auth.Service
	Roles     *auth.RoleService
	Issuer    *auth.Issuer
	Tokens    auth.APITokenStore
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		validator:  deps.Validator,
		engine:     deps.Engine,
		sessions:   deps.Sessions,
		roles:      deps.Roles,
		issuer:     deps.Issuer,
		tokens:     deps.Tokens,
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// authentication
	a.mux.HandleFunc("/v1/auth/sign-in", a.handleSignIn)
	a.mux.HandleFunc("/v1/auth/sign-out", a.handleSignOut)

	// workspace-scoped rbac
	a.mux.HandleFunc("/v1/workspaces/", a.handleWorkspaceScoped)

	// personal api tokens
	a.mux.HandleFunc("/v1/user/api-tokens", a.handleAPITokensCollection)
	a.mux.HandleFunc("/v1/user/api-tokens/", a.handleAPITokenResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "nimbus-auth",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
