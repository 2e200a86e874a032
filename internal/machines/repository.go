package machines

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/platform/db"
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

const selectJoined = `SELECT m.id, m.memory_size, m.disk_size, m.company_id, m.admin_id, m.created_at, m.updated_at,
       c.id, c.name, c.created_at, c.updated_at,
       u.id, u.name, u.email
FROM machines m
LEFT JOIN companies c ON c.id = m.company_id
LEFT JOIN users u ON u.id = m.admin_id`

// CreateMachine inserts an unassigned machine.
func (r *Repository) CreateMachine(ctx context.Context, m Machine) (Machine, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO machines (memory_size, disk_size) VALUES ($1, $2) RETURNING id, created_at, updated_at`,
		m.MemorySize, m.DiskSize,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Machine{}, err
	}
	m.CompanyID = nil
	m.AdminID = nil
	return m, nil
}

// ListMachines returns every machine joined with its company and admin.
func (r *Repository) ListMachines(ctx context.Context) ([]Machine, error) {
	rows, err := r.pool.Query(ctx, selectJoined+` ORDER BY m.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	machines := []Machine{}
	for rows.Next() {
		m, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return machines, nil
}

// GetMachine fetches a joined machine by ID.
func (r *Repository) GetMachine(ctx context.Context, id int64) (Machine, error) {
	m, err := scanJoined(r.pool.QueryRow(ctx, selectJoined+` WHERE m.id = $1`, id))
	if db.IsNoRows(err) {
		return Machine{}, shared.NotFound("machine", id)
	}
	return m, err
}

// WithTx runs fn inside a read-committed transaction; LockMachine holds the
// row until it ends.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockMachine(ctx context.Context, id int64) (Machine, error) {
	var m Machine
	err := r.tx.QueryRow(ctx,
		`SELECT id, memory_size, disk_size, company_id, admin_id, created_at, updated_at
		 FROM machines WHERE id = $1 FOR UPDATE`, id,
	).Scan(&m.ID, &m.MemorySize, &m.DiskSize, &m.CompanyID, &m.AdminID, &m.CreatedAt, &m.UpdatedAt)
	if db.IsNoRows(err) {
		return Machine{}, shared.NotFound("machine", id)
	}
	return m, err
}

func (r *txRepository) CompanyExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) UserCompany(ctx context.Context, userID int64) (int64, error) {
	var companyID int64
	err := r.tx.QueryRow(ctx, `SELECT company_id FROM users WHERE id = $1`, userID).Scan(&companyID)
	if db.IsNoRows(err) {
		return 0, shared.NotFound("user", userID)
	}
	return companyID, err
}

func (r *txRepository) UpdateOwnership(ctx context.Context, id int64, own Ownership) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE machines SET company_id = $2, admin_id = $3, updated_at = NOW() WHERE id = $1`,
		id, own.CompanyID, own.AdminID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("machine", id)
	}
	return nil
}

func scanJoined(row pgx.Row) (Machine, error) {
	var (
		m                              Machine
		companyID                      *int64
		companyName                    *string
		companyCreated, companyUpdated *time.Time
		adminID                        *int64
		adminName, adminEmail          *string
	)
	err := row.Scan(
		&m.ID, &m.MemorySize, &m.DiskSize, &m.CompanyID, &m.AdminID, &m.CreatedAt, &m.UpdatedAt,
		&companyID, &companyName, &companyCreated, &companyUpdated,
		&adminID, &adminName, &adminEmail,
	)
	if err != nil {
		return Machine{}, err
	}
	if companyID != nil {
		m.Company = &companies.Company{ID: *companyID, Name: *companyName, CreatedAt: *companyCreated, UpdatedAt: *companyUpdated}
	}
	if adminID != nil {
		m.Admin = &AdminSummary{ID: *adminID, Name: *adminName, Email: *adminEmail}
	}
	return m, nil
}

var _ RepositoryPort = (*Repository)(nil)
