package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"nimbus.cloud/internal/auth"
)

func TestCreateAPITokenEncodesJSONColumns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("insert into api_tokens").
		WithArgs("t-1", "u-1", "ci token", "hash", now, nil,
			[]byte(`["10.0.0.0/8"]`),
			[]byte(`{"ws-1":{"isSuperAdmin":true}}`),
			now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CreateAPIToken(context.Background(), auth.APIToken{
		ID:         "t-1",
		UserID:     "u-1",
		Name:       "ci token",
		TokenHash:  "hash",
		CreatedAt:  now,
		NotBefore:  now,
		AllowedIPs: []string{"10.0.0.0/8"},
		Grants:     map[string]auth.WorkspacePermissionSnapshot{"ws-1": {IsSuperAdmin: true}},
	})
	if err != nil {
		t.Fatalf("CreateAPIToken: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetAPITokenDecodesJSONColumns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(24 * time.Hour)

	mock.ExpectQuery("select id, user_id, name, token_hash, token_nbf, token_exp, allowed_ips, grants, revoked, created_at").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "token_hash", "token_nbf", "token_exp", "allowed_ips", "grants", "revoked", "created_at"}).
			AddRow("t-1", "u-1", "ci token", "hash", now, exp,
				[]byte(`["10.0.0.0/8"]`),
				[]byte(`{"ws-1":{"isSuperAdmin":false,"grants":[{"permission":"deployment:view","scope":"specificResources","resourceIds":["dep-a"]}]}}`),
				false, now))

	token, err := store.GetAPIToken(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if token.Expiry == nil || !token.Expiry.Equal(exp) {
		t.Fatalf("expiry not decoded: %v", token.Expiry)
	}
	if len(token.AllowedIPs) != 1 || token.AllowedIPs[0] != "10.0.0.0/8" {
		t.Fatalf("allowed ips not decoded: %v", token.AllowedIPs)
	}
	snap, ok := token.Grants["ws-1"]
	if !ok || len(snap.Grants) != 1 || snap.Grants[0].Permission != auth.PermDeploymentView {
		t.Fatalf("grants not decoded: %+v", token.Grants)
	}
}

func TestGetAPITokenMissingIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, user_id, name, token_hash").
		WithArgs("t-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "token_hash", "token_nbf", "token_exp", "allowed_ips", "grants", "revoked", "created_at"}))

	if _, err := store.GetAPIToken(context.Background(), "t-404"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeAPITokenMissingIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update api_tokens set revoked = true").
		WithArgs("t-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RevokeAPIToken(context.Background(), "t-404"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAPITokenHashSkipsRevoked(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update api_tokens set token_hash").
		WithArgs("t-1", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.UpdateAPITokenHash(context.Background(), "t-1", "new-hash"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for revoked token, got %v", err)
	}
}
