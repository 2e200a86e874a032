package sqlite

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/shared"
)

// MachineRepository implements machines.RepositoryPort.
type MachineRepository struct {
	db *bun.DB
}

// CreateMachine inserts an unassigned machine.
func (r *MachineRepository) CreateMachine(ctx context.Context, m machines.Machine) (machines.Machine, error) {
	now := time.Now().UTC()
	row := &machineModel{MemorySize: m.MemorySize, DiskSize: m.DiskSize, CreatedAt: now, UpdatedAt: now}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return machines.Machine{}, err
	}
	return row.toMachine(), nil
}

// ListMachines returns every machine joined with its company and admin.
func (r *MachineRepository) ListMachines(ctx context.Context) ([]machines.Machine, error) {
	var rows []machineModel
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Company").
		Relation("Admin").
		Order("m.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]machines.Machine, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toMachine())
	}
	return out, nil
}

// GetMachine fetches a joined machine by ID.
func (r *MachineRepository) GetMachine(ctx context.Context, id int64) (machines.Machine, error) {
	row := new(machineModel)
	err := r.db.NewSelect().
		Model(row).
		Relation("Company").
		Relation("Admin").
		Where("m.id = ?", id).
		Scan(ctx)
	if isNoRows(err) {
		return machines.Machine{}, shared.NotFound("machine", id)
	}
	if err != nil {
		return machines.Machine{}, err
	}
	return row.toMachine(), nil
}

// WithTx runs fn in a transaction. The store holds a single connection, so
// concurrent assignments are serialised.
func (r *MachineRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx machines.TxRepository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &machineTx{tx: tx})
	})
}

type machineTx struct {
	tx bun.Tx
}

func (t *machineTx) LockMachine(ctx context.Context, id int64) (machines.Machine, error) {
	row := new(machineModel)
	err := t.tx.NewSelect().Model(row).Where("m.id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return machines.Machine{}, shared.NotFound("machine", id)
	}
	if err != nil {
		return machines.Machine{}, err
	}
	return row.toMachine(), nil
}

func (t *machineTx) CompanyExists(ctx context.Context, id int64) (bool, error) {
	return t.tx.NewSelect().Model((*companyModel)(nil)).Where("c.id = ?", id).Exists(ctx)
}

func (t *machineTx) UserCompany(ctx context.Context, userID int64) (int64, error) {
	var companyID int64
	err := t.tx.NewSelect().
		Model((*userModel)(nil)).
		Column("company_id").
		Where("u.id = ?", userID).
		Scan(ctx, &companyID)
	if isNoRows(err) {
		return 0, shared.NotFound("user", userID)
	}
	return companyID, err
}

func (t *machineTx) UpdateOwnership(ctx context.Context, id int64, own machines.Ownership) error {
	res, err := t.tx.NewUpdate().
		Model((*machineModel)(nil)).
		Set("company_id = ?", own.CompanyID).
		Set("admin_id = ?", own.AdminID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.NotFound("machine", id)
	}
	return nil
}

var _ machines.RepositoryPort = (*MachineRepository)(nil)
