package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"nimbus.cloud/internal/auth"
)

// CreateAPIToken inserts the token record. Workspace permission snapshots
// and the allowed-IP list are stored as jsonb so the record round-trips
// without a join fan-out on the validation path.
func (s *Store) CreateAPIToken(ctx context.Context, token auth.APIToken) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	grants, err := json.Marshal(token.Grants)
	if err != nil {
		return fmt.Errorf("encode grants: %w", err)
	}
	allowedIPs, err := json.Marshal(token.AllowedIPs)
	if err != nil {
		return fmt.Errorf("encode allowed ips: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into api_tokens (id, user_id, name, token_hash, token_nbf, token_exp, allowed_ips, grants, revoked, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, false, $9)
	`, token.ID, token.UserID, token.Name, token.TokenHash, token.NotBefore, token.Expiry, allowedIPs, grants, token.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

// GetAPIToken loads one token record by id.
func (s *Store) GetAPIToken(ctx context.Context, id string) (auth.APIToken, error) {
	if s.db == nil {
		return auth.APIToken{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select id, user_id, name, token_hash, token_nbf, token_exp, allowed_ips, grants, revoked, created_at
		from api_tokens
		where id = $1
	`, id)
	token, err := scanAPIToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.APIToken{}, auth.ErrNotFound
	}
	return token, err
}

// ListAPITokens lists a user's token records, newest first.
func (s *Store) ListAPITokens(ctx context.Context, userID string) ([]auth.APIToken, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, name, token_hash, token_nbf, token_exp, allowed_ips, grants, revoked, created_at
		from api_tokens
		where user_id = $1
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []auth.APIToken
	for rows.Next() {
		token, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// UpdateAPITokenHash swaps the stored secret hash on regeneration.
func (s *Store) UpdateAPITokenHash(ctx context.Context, id, tokenHash string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update api_tokens set token_hash = $2 where id = $1 and not revoked
	`, id, tokenHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// RevokeAPIToken marks the record revoked. The row is kept so the id never
// becomes reusable and listings can show the token's history.
func (s *Store) RevokeAPIToken(ctx context.Context, id string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update api_tokens set revoked = true where id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIToken(row rowScanner) (auth.APIToken, error) {
	var (
		token      auth.APIToken
		expiry     sql.NullTime
		allowedIPs []byte
		grants     []byte
	)
	err := row.Scan(&token.ID, &token.UserID, &token.Name, &token.TokenHash,
		&token.NotBefore, &expiry, &allowedIPs, &grants, &token.Revoked, &token.CreatedAt)
	if err != nil {
		return auth.APIToken{}, err
	}
	if expiry.Valid {
		t := expiry.Time
		token.Expiry = &t
	}
	if len(allowedIPs) > 0 {
		if err := json.Unmarshal(allowedIPs, &token.AllowedIPs); err != nil {
			return auth.APIToken{}, fmt.Errorf("decode allowed ips: %w", err)
		}
	}
	if len(grants) > 0 {
		if err := json.Unmarshal(grants, &token.Grants); err != nil {
			return auth.APIToken{}, fmt.Errorf("decode grants: %w", err)
		}
	}
	return token, nil
}
