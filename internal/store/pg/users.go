package pg

import (
	"context"
	"database/sql"
	"errors"

	"nimbus.cloud/internal/auth"
)

// GetUser returns the profile summary for one user.
func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, first_name, last_name, created_at
		from users
		where id = $1
	`, id).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

// UserByUsername resolves a sign-in name to a profile. Usernames are stored
// lowercase; callers normalize before lookup.
func (s *Store) UserByUsername(ctx context.Context, username string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errors.New("database connection unavailable")
	}
	var u auth.User
	err := s.db.QueryRowContext(ctx, `
		select id, username, first_name, last_name, created_at
		from users
		where username = $1
	`, username).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

// Verify checks a plaintext password against the stored hash. A missing
// user reports as a failed check, not an error, so callers cannot tell the
// two apart.
func (s *Store) Verify(ctx context.Context, userID, plaintext string) (bool, error) {
	if s.db == nil {
		return false, errors.New("database connection unavailable")
	}
	var hash string
	err := s.db.QueryRowContext(ctx, `
		select password_hash from users where id = $1
	`, userID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return auth.VerifyPassword(hash, plaintext) == nil, nil
}
