package pg

import (
	"context"
	"database/sql"
	"errors"

	"nimbus.cloud/internal/auth"
)

// Membership returns a user's membership in one workspace, including the
// ids of every role assigned to it. Non-members read as absent.
func (s *Store) Membership(ctx context.Context, userID, workspaceID string) (auth.WorkspaceMembership, error) {
	if s.db == nil {
		return auth.WorkspaceMembership{}, errors.New("database connection unavailable")
	}
	var m auth.WorkspaceMembership
	err := s.db.QueryRowContext(ctx, `
		select user_id, workspace_id, is_super_admin
		from workspace_members
		where user_id = $1 and workspace_id = $2
	`, userID, workspaceID).Scan(&m.UserID, &m.WorkspaceID, &m.IsSuperAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.WorkspaceMembership{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.WorkspaceMembership{}, err
	}
	m.RoleIDs, err = s.memberRoleIDs(ctx, userID, workspaceID)
	if err != nil {
		return auth.WorkspaceMembership{}, err
	}
	return m, nil
}

// Memberships returns every workspace the user belongs to.
func (s *Store) Memberships(ctx context.Context, userID string) ([]auth.WorkspaceMembership, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select user_id, workspace_id, is_super_admin
		from workspace_members
		where user_id = $1
		order by workspace_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []auth.WorkspaceMembership
	for rows.Next() {
		var m auth.WorkspaceMembership
		if err := rows.Scan(&m.UserID, &m.WorkspaceID, &m.IsSuperAdmin); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range memberships {
		memberships[i].RoleIDs, err = s.memberRoleIDs(ctx, userID, memberships[i].WorkspaceID)
		if err != nil {
			return nil, err
		}
	}
	return memberships, nil
}

func (s *Store) memberRoleIDs(ctx context.Context, userID, workspaceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_id
		from member_roles
		where user_id = $1 and workspace_id = $2
		order by role_id
	`, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roleIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, id)
	}
	return roleIDs, rows.Err()
}
