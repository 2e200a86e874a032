package sqlite

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/shared"
)

// CompanyRepository implements companies.Repository.
type CompanyRepository struct {
	db *bun.DB
}

// List returns all companies ordered by id.
func (r *CompanyRepository) List(ctx context.Context) ([]companies.Company, error) {
	var rows []companyModel
	if err := r.db.NewSelect().Model(&rows).Order("c.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]companies.Company, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCompany())
	}
	return out, nil
}

// Get fetches a company by ID.
func (r *CompanyRepository) Get(ctx context.Context, id int64) (companies.Company, error) {
	row := new(companyModel)
	err := r.db.NewSelect().Model(row).Where("c.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return companies.Company{}, shared.NotFound("company", id)
	}
	if err != nil {
		return companies.Company{}, err
	}
	return row.toCompany(), nil
}

// Create inserts a company.
func (r *CompanyRepository) Create(ctx context.Context, company companies.Company) (companies.Company, error) {
	return insertCompany(ctx, r.db, company)
}

// CreateWithAdmin inserts the company and its first admin in one transaction.
func (r *CompanyRepository) CreateWithAdmin(ctx context.Context, company companies.Company, admin companies.AdminAccount) (companies.Company, error) {
	var created companies.Company
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = insertCompany(ctx, tx, company)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		_, err = tx.NewInsert().Model(&userModel{
			Name:         admin.Name,
			Email:        admin.Email,
			PasswordHash: admin.PasswordHash,
			RoleID:       admin.RoleID,
			CompanyID:    created.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).Exec(ctx)
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	})
	if err != nil {
		return companies.Company{}, err
	}
	return created, nil
}

func insertCompany(ctx context.Context, db bun.IDB, company companies.Company) (companies.Company, error) {
	now := time.Now().UTC()
	row := &companyModel{Name: company.Name, CreatedAt: now, UpdatedAt: now}
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return companies.Company{}, err
	}
	return row.toCompany(), nil
}

var _ companies.Repository = (*CompanyRepository)(nil)
