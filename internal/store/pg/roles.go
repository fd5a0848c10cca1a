package pg

import (
	"context"
	"database/sql"
	"errors"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/ids"
)

// CreateRole inserts the role row, its grant rows and their resource sets in
// one transaction. A grant is never observable without its resources.
func (s *Store) CreateRole(ctx context.Context, role auth.Role) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into roles (id, workspace_id, name, description)
		values ($1, $2, $3, $4)
		returning created_at, updated_at
	`, role.ID, role.WorkspaceID, role.Name, role.Description)
	if err := row.Scan(&role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Role{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.Role{}, auth.ErrNotFound
			}
		}
		return auth.Role{}, err
	}

	if err := insertGrants(ctx, tx, role.ID, role.Grants); err != nil {
		return auth.Role{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

// GetRole reconstructs a role's grants by joining the grant rows with their
// resource sets. Roles owned by another workspace read as absent.
func (s *Store) GetRole(ctx context.Context, workspaceID, roleID string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errors.New("database connection unavailable")
	}
	var role auth.Role
	err := s.db.QueryRowContext(ctx, `
		select id, workspace_id, name, description, created_at, updated_at
		from roles
		where id = $1 and workspace_id = $2
	`, roleID, workspaceID).Scan(&role.ID, &role.WorkspaceID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	role.Grants, err = s.grantsForRole(ctx, role.ID)
	if err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

// ListRoles lists a workspace's roles with their grants.
func (s *Store) ListRoles(ctx context.Context, workspaceID string) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, workspace_id, name, description, created_at, updated_at
		from roles
		where workspace_id = $1
		order by name
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.WorkspaceID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		grants, err := s.grantsForRole(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Grants = grants
	}
	return roles, nil
}

// UpdateRole applies partial changes; a provided grant set replaces the old
// one in the same transaction (delete then insert).
func (s *Store) UpdateRole(ctx context.Context, workspaceID, roleID string, upd auth.RoleUpdate) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Role{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var role auth.Role
	err = tx.QueryRowContext(ctx, `
		update roles
		set name = coalesce($3, name),
		    description = coalesce($4, description),
		    updated_at = now()
		where id = $1 and workspace_id = $2
		returning id, workspace_id, name, description, created_at, updated_at
	`, roleID, workspaceID, upd.Name, upd.Description).
		Scan(&role.ID, &role.WorkspaceID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Role{}, auth.ErrConflict
		}
		return auth.Role{}, err
	}

	if upd.Grants != nil {
		// resource rows cascade from the grant rows
		if _, err := tx.ExecContext(ctx, `delete from role_grants where role_id = $1`, roleID); err != nil {
			return auth.Role{}, err
		}
		if err := insertGrants(ctx, tx, roleID, *upd.Grants); err != nil {
			return auth.Role{}, err
		}
		role.Grants = *upd.Grants
	}

	if err := tx.Commit(); err != nil {
		return auth.Role{}, err
	}

	if upd.Grants == nil {
		role.Grants, err = s.grantsForRole(ctx, roleID)
		if err != nil {
			return auth.Role{}, err
		}
	}
	return role, nil
}

// DeleteRole removes the role; grant and resource rows cascade. Outstanding
// access tokens minted from the role keep their snapshot until expiry.
func (s *Store) DeleteRole(ctx context.Context, workspaceID, roleID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from roles where id = $1 and workspace_id = $2
	`, roleID, workspaceID)
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

func insertGrants(ctx context.Context, tx *sql.Tx, roleID string, grants []auth.PermissionGrant) error {
	for _, grant := range grants {
		grantID := ids.New()
		if _, err := tx.ExecContext(ctx, `
			insert into role_grants (id, role_id, permission, scope, resource_type)
			values ($1, $2, $3, $4, $5)
		`, grantID, roleID, string(grant.Permission), string(grant.Scope), string(grant.ResourceType)); err != nil {
			return err
		}
		for _, resourceID := range grant.ResourceIDs {
			if _, err := tx.ExecContext(ctx, `
				insert into role_grant_resources (grant_id, resource_id)
				values ($1, $2)
			`, grantID, resourceID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) grantsForRole(ctx context.Context, roleID string) ([]auth.PermissionGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select g.id, g.permission, g.scope, g.resource_type, r.resource_id
		from role_grants g
		left join role_grant_resources r on r.grant_id = g.id
		where g.role_id = $1
		order by g.id
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []auth.PermissionGrant{}
	var currentGrantID string
	var current *auth.PermissionGrant
	flush := func() {
		if current != nil {
			grants = append(grants, *current)
			current = nil
		}
	}
	for rows.Next() {
		var (
			grantID, permission, scope, resourceType string
			resourceID                               sql.NullString
		)
		if err := rows.Scan(&grantID, &permission, &scope, &resourceType, &resourceID); err != nil {
			return nil, err
		}
		if grantID != currentGrantID {
			flush()
			currentGrantID = grantID
			current = &auth.PermissionGrant{
				Permission:   auth.Permission(permission),
				Scope:        auth.GrantScope(scope),
				ResourceType: auth.ResourceType(resourceType),
			}
		}
		if resourceID.Valid {
			current.ResourceIDs = append(current.ResourceIDs, resourceID.String)
		}
	}
	flush()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}
