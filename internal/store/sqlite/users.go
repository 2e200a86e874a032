package sqlite

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/users"
)

// UserRepository implements users.RepositoryPort.
type UserRepository struct {
	db *bun.DB
}

// CreateUser inserts a user. A duplicate email yields shared.ErrConflict.
func (r *UserRepository) CreateUser(ctx context.Context, user users.User) (users.User, error) {
	now := time.Now().UTC()
	row := &userModel{
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		RoleID:       user.RoleID,
		CompanyID:    user.CompanyID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	if isUniqueViolation(err) {
		return users.User{}, shared.ErrConflict
	}
	if isForeignKeyViolation(err) {
		return users.User{}, shared.Validation("roleId", "role or company does not exist")
	}
	if err != nil {
		return users.User{}, err
	}
	return row.toUser(), nil
}

// ListUsers returns all users joined with role and company.
func (r *UserRepository) ListUsers(ctx context.Context) ([]users.User, error) {
	var rows []userModel
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Role").
		Relation("Company").
		Order("u.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]users.User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toUser())
	}
	return out, nil
}

// GetUser fetches a joined user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (users.User, error) {
	user, err := r.selectOne(ctx, "u.id = ?", id)
	if isNoRows(err) {
		return users.User{}, shared.NotFound("user", id)
	}
	return user, err
}

// FindByEmail fetches a joined user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (users.User, error) {
	user, err := r.selectOne(ctx, "u.email = ?", email)
	if isNoRows(err) {
		return users.User{}, shared.ErrNotFound
	}
	return user, err
}

func (r *UserRepository) selectOne(ctx context.Context, where string, arg any) (users.User, error) {
	row := new(userModel)
	err := r.db.NewSelect().
		Model(row).
		Relation("Role").
		Relation("Company").
		Where(where, arg).
		Scan(ctx)
	if err != nil {
		return users.User{}, err
	}
	return row.toUser(), nil
}

var _ users.RepositoryPort = (*UserRepository)(nil)
