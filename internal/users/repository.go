package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/platform/db"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectJoined = `SELECT u.id, u.name, u.email, u.password_hash, u.role_id, u.company_id, u.created_at, u.updated_at,
       r.id, r.name, r.created_at,
       c.id, c.name, c.created_at, c.updated_at
FROM users u
JOIN roles r ON r.id = u.role_id
JOIN companies c ON c.id = u.company_id`

// CreateUser inserts a user. A duplicate email yields shared.ErrConflict and
// a dangling role or company id a validation error.
func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, role_id, company_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.PasswordHash, user.RoleID, user.CompanyID,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return User{}, shared.ErrConflict
	}
	if db.IsForeignKeyViolation(err) {
		return User{}, shared.Validation("roleId", "role or company does not exist")
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers returns all users joined with role and company.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectJoined+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		user, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a joined user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanJoined(r.pool.QueryRow(ctx, selectJoined+` WHERE u.id = $1`, id))
	if db.IsNoRows(err) {
		return User{}, shared.NotFound("user", id)
	}
	return user, err
}

// FindByEmail fetches a joined user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanJoined(r.pool.QueryRow(ctx, selectJoined+` WHERE u.email = $1`, email))
	if db.IsNoRows(err) {
		return User{}, shared.ErrNotFound
	}
	return user, err
}

func scanJoined(row pgx.Row) (User, error) {
	var (
		user    User
		role    roles.Role
		company companies.Company
	)
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.RoleID, &user.CompanyID, &user.CreatedAt, &user.UpdatedAt,
		&role.ID, &role.Name, &role.CreatedAt,
		&company.ID, &company.Name, &company.CreatedAt, &company.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	user.Role = &role
	user.Company = &company
	return user, nil
}

var _ RepositoryPort = (*Repository)(nil)
