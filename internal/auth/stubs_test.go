package auth

import (
	"context"
	"fmt"
	"time"
)

func testTable(t interface{ Fatalf(string, ...any) }) *Table {
	perms := make(map[Permission]string)
	for i, p := range AllPermissions() {
		perms[p] = fmt.Sprintf("perm-%02d", i)
	}
	types := make(map[ResourceType]string)
	for i, rt := range AllResourceTypes() {
		types[rt] = fmt.Sprintf("type-%02d", i)
	}
	table, err := NewTable(perms, types)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

type stubRoleStore struct {
	createFn func(context.Context, Role) (Role, error)
	getFn    func(context.Context, string, string) (Role, error)
	listFn   func(context.Context, string) ([]Role, error)
	updateFn func(context.Context, string, string, RoleUpdate) (Role, error)
	deleteFn func(context.Context, string, string) error
}

func (s *stubRoleStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	if s.createFn != nil {
		return s.createFn(ctx, role)
	}
	return role, nil
}

func (s *stubRoleStore) GetRole(ctx context.Context, workspaceID, roleID string) (Role, error) {
	if s.getFn != nil {
		return s.getFn(ctx, workspaceID, roleID)
	}
	return Role{}, ErrNotFound
}

func (s *stubRoleStore) ListRoles(ctx context.Context, workspaceID string) ([]Role, error) {
	if s.listFn != nil {
		return s.listFn(ctx, workspaceID)
	}
	return nil, nil
}

func (s *stubRoleStore) UpdateRole(ctx context.Context, workspaceID, roleID string, upd RoleUpdate) (Role, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, workspaceID, roleID, upd)
	}
	return Role{}, ErrNotFound
}

func (s *stubRoleStore) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, workspaceID, roleID)
	}
	return ErrNotFound
}

type stubMembershipStore struct {
	membershipFn  func(context.Context, string, string) (WorkspaceMembership, error)
	membershipsFn func(context.Context, string) ([]WorkspaceMembership, error)
}

func (s *stubMembershipStore) Membership(ctx context.Context, userID, workspaceID string) (WorkspaceMembership, error) {
	if s.membershipFn != nil {
		return s.membershipFn(ctx, userID, workspaceID)
	}
	return WorkspaceMembership{}, ErrNotFound
}

func (s *stubMembershipStore) Memberships(ctx context.Context, userID string) ([]WorkspaceMembership, error) {
	if s.membershipsFn != nil {
		return s.membershipsFn(ctx, userID)
	}
	return nil, nil
}

type stubUserStore struct {
	getFn        func(context.Context, string) (User, error)
	byUsernameFn func(context.Context, string) (User, error)
}

func (s *stubUserStore) GetUser(ctx context.Context, id string) (User, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return User{}, ErrNotFound
}

func (s *stubUserStore) UserByUsername(ctx context.Context, username string) (User, error) {
	if s.byUsernameFn != nil {
		return s.byUsernameFn(ctx, username)
	}
	return User{}, ErrNotFound
}

type stubCredentialStore struct {
	verifyFn func(context.Context, string, string) (bool, error)
}

func (s *stubCredentialStore) Verify(ctx context.Context, userID, plaintext string) (bool, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, userID, plaintext)
	}
	return false, nil
}

// memTokenStore is an in-memory APITokenStore for issuer/validator tests.
type memTokenStore struct {
	tokens map[string]APIToken
	gets   int
	getErr error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]APIToken)}
}

func (s *memTokenStore) CreateAPIToken(_ context.Context, token APIToken) error {
	s.tokens[token.ID] = token
	return nil
}

func (s *memTokenStore) GetAPIToken(_ context.Context, id string) (APIToken, error) {
	s.gets++
	if s.getErr != nil {
		return APIToken{}, s.getErr
	}
	token, ok := s.tokens[id]
	if !ok {
		return APIToken{}, ErrNotFound
	}
	return token, nil
}

func (s *memTokenStore) ListAPITokens(_ context.Context, userID string) ([]APIToken, error) {
	var out []APIToken
	for _, token := range s.tokens {
		if token.UserID == userID {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *memTokenStore) UpdateAPITokenHash(_ context.Context, id, tokenHash string) error {
	token, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	token.TokenHash = tokenHash
	s.tokens[id] = token
	return nil
}

func (s *memTokenStore) RevokeAPIToken(_ context.Context, id string) error {
	token, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	token.Revoked = true
	s.tokens[id] = token
	return nil
}

// memRegistry is an in-memory RevocationRegistry for validator tests.
type memRegistry struct {
	markers    RevocationMarkers
	markersErr error
	now        func() time.Time

	loginRevoked []string
	userRevoked  []string
	allRevoked   int
}

func (r *memRegistry) RevokeLogin(_ context.Context, loginID string) error {
	r.loginRevoked = append(r.loginRevoked, loginID)
	if r.now != nil {
		r.markers.Login = r.now()
	}
	return nil
}

func (r *memRegistry) RevokeUser(_ context.Context, userID string) error {
	r.userRevoked = append(r.userRevoked, userID)
	if r.now != nil {
		r.markers.User = r.now()
	}
	return nil
}

func (r *memRegistry) RevokeAll(_ context.Context) error {
	r.allRevoked++
	if r.now != nil {
		r.markers.Global = r.now()
	}
	return nil
}

func (r *memRegistry) Markers(_ context.Context, _, _ string) (RevocationMarkers, error) {
	if r.markersErr != nil {
		return RevocationMarkers{}, r.markersErr
	}
	return r.markers, nil
}
