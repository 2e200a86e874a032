package sqlite

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
)

// RoleRepository implements roles.RepositoryPort.
type RoleRepository struct {
	db *bun.DB
}

// FindOrCreate inserts the role unless it exists and returns the stored row.
// A skipped insert returns no rows for RETURNING, which is not an error here.
func (r *RoleRepository) FindOrCreate(ctx context.Context, name string) (roles.Role, error) {
	if _, err := r.db.NewInsert().
		Model(&roleModel{Name: name}).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx); err != nil && !isNoRows(err) {
		return roles.Role{}, err
	}
	return r.GetRoleByName(ctx, name)
}

// ListRoles returns all roles ordered by id.
func (r *RoleRepository) ListRoles(ctx context.Context) ([]roles.Role, error) {
	var rows []roleModel
	if err := r.db.NewSelect().Model(&rows).Order("r.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]roles.Role, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRole())
	}
	return out, nil
}

// GetRole fetches a role by ID.
func (r *RoleRepository) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	row := new(roleModel)
	err := r.db.NewSelect().Model(row).Where("r.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return roles.Role{}, shared.NotFound("role", id)
	}
	if err != nil {
		return roles.Role{}, err
	}
	return row.toRole(), nil
}

// GetRoleByName fetches a role by its unique name.
func (r *RoleRepository) GetRoleByName(ctx context.Context, name string) (roles.Role, error) {
	row := new(roleModel)
	err := r.db.NewSelect().Model(row).Where("r.name = ?", name).Scan(ctx)
	if isNoRows(err) {
		return roles.Role{}, shared.ErrNotFound
	}
	if err != nil {
		return roles.Role{}, err
	}
	return row.toRole(), nil
}

var _ roles.RepositoryPort = (*RoleRepository)(nil)
