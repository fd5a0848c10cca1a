package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/ids"
)

const testSecret = "httpapi-test-secret"

type memRoleStore struct {
	mu    sync.Mutex
	roles map[string]auth.Role
}

func newMemRoleStore() *memRoleStore {
	return &memRoleStore{roles: make(map[string]auth.Role)}
}

func (s *memRoleStore) CreateRole(_ context.Context, role auth.Role) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.WorkspaceID == role.WorkspaceID && existing.Name == role.Name {
			return auth.Role{}, auth.ErrConflict
		}
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *memRoleStore) GetRole(_ context.Context, workspaceID, roleID string) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok || role.WorkspaceID != workspaceID {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, nil
}

func (s *memRoleStore) ListRoles(_ context.Context, workspaceID string) ([]auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.Role
	for _, role := range s.roles {
		if role.WorkspaceID == workspaceID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *memRoleStore) UpdateRole(_ context.Context, workspaceID, roleID string, upd auth.RoleUpdate) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok || role.WorkspaceID != workspaceID {
		return auth.Role{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if upd.Grants != nil {
		role.Grants = *upd.Grants
	}
	s.roles[roleID] = role
	return role, nil
}

func (s *memRoleStore) DeleteRole(_ context.Context, workspaceID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok || role.WorkspaceID != workspaceID {
		return auth.ErrNotFound
	}
	delete(s.roles, roleID)
	return nil
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]auth.APIToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]auth.APIToken)}
}

func (s *memTokenStore) CreateAPIToken(_ context.Context, token auth.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *memTokenStore) GetAPIToken(_ context.Context, id string) (auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return auth.APIToken{}, auth.ErrNotFound
	}
	return token, nil
}

func (s *memTokenStore) ListAPITokens(_ context.Context, userID string) ([]auth.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.APIToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *memTokenStore) UpdateAPITokenHash(_ context.Context, id, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return auth.ErrNotFound
	}
	token.TokenHash = tokenHash
	s.tokens[id] = token
	return nil
}

func (s *memTokenStore) RevokeAPIToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return auth.ErrNotFound
	}
	token.Revoked = true
	s.tokens[id] = token
	return nil
}

type memRegistry struct {
	mu         sync.Mutex
	markers    auth.RevocationMarkers
	markersErr error
	logins     map[string]time.Time
}

func newMemRegistry() *memRegistry {
	return &memRegistry{logins: make(map[string]time.Time)}
}

func (r *memRegistry) RevokeLogin(_ context.Context, loginID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[loginID] = time.Now().UTC()
	return nil
}

func (r *memRegistry) RevokeUser(_ context.Context, _ string) error { return nil }

func (r *memRegistry) RevokeAll(_ context.Context) error { return nil }

func (r *memRegistry) Markers(_ context.Context, _, loginID string) (auth.RevocationMarkers, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markersErr != nil {
		return auth.RevocationMarkers{}, r.markersErr
	}
	markers := r.markers
	if ts, ok := r.logins[loginID]; ok {
		markers.Login = ts
	}
	return markers, nil
}

type memUserStore struct {
	users map[string]auth.User
}

func (s *memUserStore) GetUser(_ context.Context, id string) (auth.User, error) {
	user, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (s *memUserStore) UserByUsername(_ context.Context, username string) (auth.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

type memCredentialStore struct {
	passwords map[string]string
}

func (s *memCredentialStore) Verify(_ context.Context, userID, plaintext string) (bool, error) {
	return s.passwords[userID] == plaintext, nil
}

type memMembershipStore struct {
	memberships []auth.WorkspaceMembership
}

func (s *memMembershipStore) Membership(_ context.Context, userID, workspaceID string) (auth.WorkspaceMembership, error) {
	for _, m := range s.memberships {
		if m.UserID == userID && m.WorkspaceID == workspaceID {
			return m, nil
		}
	}
	return auth.WorkspaceMembership{}, auth.ErrNotFound
}

func (s *memMembershipStore) Memberships(_ context.Context, userID string) ([]auth.WorkspaceMembership, error) {
	var out []auth.WorkspaceMembership
	for _, m := range s.memberships {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func testTable(t *testing.T) *auth.Table {
	t.Helper()
	perms := make(map[auth.Permission]string)
	for i, p := range auth.AllPermissions() {
		perms[p] = fmt.Sprintf("perm-%02d", i)
	}
	types := make(map[auth.ResourceType]string)
	for i, rt := range auth.AllResourceTypes() {
		types[rt] = fmt.Sprintf("type-%02d", i)
	}
	table, err := auth.NewTable(perms, types)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

type testEnv struct {
	api      *API
	issuer   *auth.Issuer
	registry *memRegistry
	tokens   *memTokenStore
	roles    *memRoleStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	table := testTable(t)
	registry := newMemRegistry()
	tokens := newMemTokenStore()
	roleStore := newMemRoleStore()

	users := &memUserStore{users: map[string]auth.User{
		"u-1": {ID: "u-1", Username: "dana"},
	}}
	creds := &memCredentialStore{passwords: map[string]string{"u-1": "hunter2"}}
	memberships := &memMembershipStore{memberships: []auth.WorkspaceMembership{
		{UserID: "u-1", WorkspaceID: "ws-1", IsSuperAdmin: true},
	}}

	issuer, err := auth.NewIssuer(testSecret, tokens)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	validator, err := auth.NewValidator(testSecret, registry, tokens, auth.WithAPITokenCacheTTL(0))
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	engine, err := auth.NewEngine(table, "")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	resolver, err := auth.NewResolver(memberships, roleStore)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	sessions, err := auth.NewService(users, creds, resolver, issuer, registry)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	roleSvc, err := auth.NewRoleService(roleStore, table)
	if err != nil {
		t.Fatalf("NewRoleService: %v", err)
	}

	api := New(ReadyProbe{}, "test", Deps{
		Validator: validator,
		Engine:    engine,
		Sessions:  sessions,
		Roles:     roleSvc,
		Issuer:    issuer,
		Tokens:    tokens,
	})
	return &testEnv{api: api, issuer: issuer, registry: registry, tokens: tokens, roles: roleStore}
}

// accessToken mints a signed token carrying the given snapshots.
func (e *testEnv) accessToken(t *testing.T, userID string, snapshots map[string]auth.WorkspacePermissionSnapshot) string {
	t.Helper()
	token, _, err := e.issuer.IssueAccessToken(auth.User{ID: userID, Username: userID}, ids.New(), snapshots)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, payload)
	req.RemoteAddr = "203.0.113.5:4242"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}
