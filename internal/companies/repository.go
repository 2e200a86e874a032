package companies

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vminventory/vminventory/internal/platform/db"
	"github.com/vminventory/vminventory/internal/shared"
)

// Repository defines persistence operations for companies.
type Repository interface {
	List(ctx context.Context) ([]Company, error)
	Get(ctx context.Context, id int64) (Company, error)
	Create(ctx context.Context, company Company) (Company, error)
	CreateWithAdmin(ctx context.Context, company Company, admin AdminAccount) (Company, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectCompany = `SELECT id, name, created_at, updated_at FROM companies`

func (r *repository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx, selectCompany+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	companies := []Company{}
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, selectCompany+` WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return Company{}, shared.NotFound("company", id)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, company Company) (Company, error) {
	return insertCompany(ctx, r.pool, company)
}

// CreateWithAdmin inserts the company and its first admin in one transaction.
func (r *repository) CreateWithAdmin(ctx context.Context, company Company, admin AdminAccount) (Company, error) {
	var created Company
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = insertCompany(ctx, tx, company)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO users (name, email, password_hash, role_id, company_id) VALUES ($1, $2, $3, $4, $5)`,
			admin.Name, admin.Email, admin.PasswordHash, admin.RoleID, created.ID)
		if db.IsUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	})
	if err != nil {
		return Company{}, err
	}
	return created, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertCompany(ctx context.Context, q queryRower, company Company) (Company, error) {
	var c Company
	err := q.QueryRow(ctx,
		`INSERT INTO companies (name) VALUES ($1) RETURNING id, name, created_at, updated_at`,
		company.Name).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
