package machines

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/shared"
)

// RepositoryPort defines data access methods for machines.
type RepositoryPort interface {
	CreateMachine(ctx context.Context, m Machine) (Machine, error)
	ListMachines(ctx context.Context) ([]Machine, error)
	GetMachine(ctx context.Context, id int64) (Machine, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository is the transactional view used by assignment. LockMachine
// must hold the row until the transaction ends.
type TxRepository interface {
	LockMachine(ctx context.Context, id int64) (Machine, error)
	CompanyExists(ctx context.Context, id int64) (bool, error)
	UserCompany(ctx context.Context, userID int64) (int64, error)
	UpdateOwnership(ctx context.Context, id int64, own Ownership) error
}

const listKey = "machines"

// Service handles machine business logic.
type Service struct {
	repo      RepositoryPort
	validator *shared.Validator
	auditor   shared.Auditor
	logger    *slog.Logger
	group     singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditor shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		validator: shared.NewValidator(),
		auditor:   auditor,
		logger:    logger,
	}
}

// CreateMachine stores a new unassigned machine.
func (s *Service) CreateMachine(ctx context.Context, req CreateMachineRequest) (Machine, error) {
	p, err := rbac.Authenticated(ctx)
	if err != nil {
		return Machine{}, err
	}
	if err := rbac.CanCreateMachine(p); err != nil {
		return Machine{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return Machine{}, err
	}
	m, err := s.repo.CreateMachine(ctx, Machine{MemorySize: req.MemorySize, DiskSize: req.DiskSize})
	if err != nil {
		return Machine{}, shared.Persistence("create machine", err)
	}
	s.group.Forget(listKey)
	shared.RecordAudit(ctx, s.auditor, s.logger, shared.NewAuditLog(ctx, shared.AuditMachineCreated, "machine", m.ID, map[string]any{
		"memory_size": m.MemorySize,
		"disk_size":   m.DiskSize,
	}))
	return m, nil
}

// ListMachines returns every machine with its company and admin. Concurrent
// callers share one query; a write forgets the in-flight query so later
// callers never join a read that started before it.
func (s *Service) ListMachines(ctx context.Context) ([]Machine, error) {
	if _, err := rbac.Authenticated(ctx); err != nil {
		return nil, err
	}
	resultChan := s.group.DoChan(listKey, func() (any, error) {
		return s.repo.ListMachines(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, shared.Persistence("list machines", ctx.Err())
	case res := <-resultChan:
		if res.Err != nil {
			return nil, shared.Persistence("list machines", res.Err)
		}
		return res.Val.([]Machine), nil
	}
}

// AssignMachine moves a machine to a company and/or admin. Only fields
// present in the request change. The read, the checks and the write run in
// one transaction with the machine row locked.
func (s *Service) AssignMachine(ctx context.Context, id int64, req AssignRequest) (Machine, error) {
	p, err := rbac.Authenticated(ctx)
	if err != nil {
		return Machine{}, err
	}
	if err := validateAssign(id, req); err != nil {
		return Machine{}, err
	}

	var (
		before  Machine
		after   Ownership
		changed bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.LockMachine(ctx, id)
		if err != nil {
			return err
		}
		before = m
		check := rbac.AssignCheck{CurrentCompanyID: m.CompanyID}
		if req.CompanyID.Present() {
			check.TargetCompanyID = &req.CompanyID.Value
		}
		if err := rbac.CanAssignMachine(p, check); err != nil {
			return err
		}
		if req.Empty() {
			return nil
		}

		after = Ownership{CompanyID: m.CompanyID, AdminID: m.AdminID}
		if req.CompanyID.Present() {
			ok, err := tx.CompanyExists(ctx, req.CompanyID.Value)
			if err != nil {
				return err
			}
			if !ok {
				return shared.Validation("companyId", "company %d does not exist", req.CompanyID.Value)
			}
			after.CompanyID = int64Ptr(req.CompanyID.Value)
		}

		var adminCompany *int64
		if req.AdminID.Present() {
			companyID, err := tx.UserCompany(ctx, req.AdminID.Value)
			if errors.Is(err, shared.ErrNotFound) {
				return shared.Validation("adminId", "user %d does not exist", req.AdminID.Value)
			}
			if err != nil {
				return err
			}
			adminCompany = &companyID
			check.AdminCompanyID = adminCompany
			if err := rbac.CanAssignMachine(p, check); err != nil {
				return err
			}
			after.AdminID = int64Ptr(req.AdminID.Value)
		} else if after.AdminID != nil && req.CompanyID.Present() {
			companyID, err := tx.UserCompany(ctx, *after.AdminID)
			if err != nil {
				return err
			}
			adminCompany = &companyID
		}

		if after.CompanyID != nil && adminCompany != nil && *adminCompany != *after.CompanyID {
			return shared.Validation("adminId", "user %d does not belong to company %d", *after.AdminID, *after.CompanyID)
		}

		changed = !sameID(after.CompanyID, m.CompanyID) || !sameID(after.AdminID, m.AdminID)
		if !changed {
			return nil
		}
		return tx.UpdateOwnership(ctx, id, after)
	})
	if err != nil {
		return Machine{}, shared.Persistence("assign machine", err)
	}
	if changed {
		s.group.Forget(listKey)
	}

	m, err := s.repo.GetMachine(ctx, id)
	if err != nil {
		return Machine{}, shared.Persistence("assign machine", err)
	}
	if changed {
		s.logger.Info("machine assigned", slog.Int64("machine_id", id), slog.Int64("actor_id", p.UserID), slog.Bool("reassigned", before.Assigned()))
		shared.RecordAudit(ctx, s.auditor, s.logger, shared.NewAuditLog(ctx, shared.AuditMachineAssigned, "machine", id, map[string]any{
			"from_company_id": before.CompanyID,
			"from_admin_id":   before.AdminID,
			"company_id":      after.CompanyID,
			"admin_id":        after.AdminID,
		}))
	}
	return m, nil
}

func validateAssign(id int64, req AssignRequest) error {
	if id <= 0 {
		return shared.Validation("id", "invalid machine ID")
	}
	if req.CompanyID.Set && req.CompanyID.Null {
		return shared.Validation("companyId", "unassignment is not supported")
	}
	if req.AdminID.Set && req.AdminID.Null {
		return shared.Validation("adminId", "unassignment is not supported")
	}
	if req.CompanyID.Present() && req.CompanyID.Value <= 0 {
		return shared.Validation("companyId", "companyId must be greater than 0")
	}
	if req.AdminID.Present() && req.AdminID.Value <= 0 {
		return shared.Validation("adminId", "adminId must be greater than 0")
	}
	return nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
