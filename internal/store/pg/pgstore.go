// Package pg persists the authorization core's state in Postgres: roles and
// their grants, workspace memberships, user profiles and API token records.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"nimbus.cloud/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements the auth package's persistence interfaces on
// database/sql over the pgx driver.
type Store struct {
	db *sql.DB
}

var (
	_ auth.RoleStore       = (*Store)(nil)
	_ auth.MembershipStore = (*Store)(nil)
	_ auth.APITokenStore   = (*Store)(nil)
	_ auth.UserStore       = (*Store)(nil)
	_ auth.CredentialStore = (*Store)(nil)
)

// Open connects to Postgres with pool settings tuned for the request path.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	return s.db.PingContext(ctx)
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
