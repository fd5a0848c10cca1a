package pg

import (
	"context"
	"errors"

	"nimbus.cloud/internal/auth"
)

// PermissionCatalog reads the seeded permission and resource-type ids. The
// result feeds auth.NewTable once at startup; nothing reads these tables on
// the request path.
func (s *Store) PermissionCatalog(ctx context.Context) (map[auth.Permission]string, map[auth.ResourceType]string, error) {
	if s.db == nil {
		return nil, nil, errors.New("database connection unavailable")
	}

	perms := make(map[auth.Permission]string)
	rows, err := s.db.QueryContext(ctx, `select id, name from permissions`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, nil, err
		}
		perms[auth.Permission(name)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	types := make(map[auth.ResourceType]string)
	typeRows, err := s.db.QueryContext(ctx, `select id, name from resource_types`)
	if err != nil {
		return nil, nil, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var id, name string
		if err := typeRows.Scan(&id, &name); err != nil {
			return nil, nil, err
		}
		types[auth.ResourceType(name)] = id
	}
	if err := typeRows.Err(); err != nil {
		return nil, nil, err
	}
	return perms, types, nil
}
