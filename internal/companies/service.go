package companies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
)

// RoleResolver looks up seeded roles by name.
type RoleResolver interface {
	RoleByName(ctx context.Context, name string) (roles.Role, error)
}

// Service implements company registration and listing.
type Service struct {
	repo      Repository
	roles     RoleResolver
	hasher    shared.PasswordHasher
	validator *shared.Validator
	auditor   shared.Auditor
	logger    *slog.Logger
}

// NewService wires the company service.
func NewService(repo Repository, roles RoleResolver, hasher shared.PasswordHasher, auditor shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		roles:     roles,
		hasher:    hasher,
		validator: shared.NewValidator(),
		auditor:   auditor,
		logger:    logger,
	}
}

// Create registers a company. Registration is public; when the request
// carries credentials the company's first admin is created with it.
func (s *Service) Create(ctx context.Context, req CreateCompanyRequest) (Company, error) {
	if err := s.validate(&req); err != nil {
		return Company{}, err
	}
	company := Company{Name: req.Name}

	if req.Email == "" {
		created, err := s.repo.Create(ctx, company)
		if err != nil {
			return Company{}, shared.Persistence("create company", err)
		}
		s.audit(ctx, created, "")
		return created, nil
	}

	role, err := s.roles.RoleByName(ctx, shared.RoleAdmin)
	if err != nil {
		return Company{}, shared.Persistence("resolve admin role", err)
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Company{}, err
	}
	adminName := req.AdminName
	if adminName == "" {
		adminName = req.Name
	}
	created, err := s.repo.CreateWithAdmin(ctx, company, AdminAccount{
		Name:         adminName,
		Email:        req.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return Company{}, fmt.Errorf("%w: email %s is already registered", shared.ErrConflict, req.Email)
		}
		return Company{}, shared.Persistence("create company", err)
	}
	s.audit(ctx, created, req.Email)
	return created, nil
}

// List returns all companies to any authenticated caller.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	if _, err := rbac.Authenticated(ctx); err != nil {
		return nil, err
	}
	companies, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Persistence("list companies", err)
	}
	return companies, nil
}

// Get returns a single company.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	if id <= 0 {
		return Company{}, shared.Validation("id", "invalid company ID")
	}
	company, err := s.repo.Get(ctx, id)
	if err != nil {
		return Company{}, shared.Persistence("get company", err)
	}
	return company, nil
}

func (s *Service) audit(ctx context.Context, c Company, adminEmail string) {
	meta := map[string]any{"name": c.Name}
	if adminEmail != "" {
		meta["admin_email"] = adminEmail
	}
	shared.RecordAudit(ctx, s.auditor, s.logger, shared.NewAuditLog(ctx, shared.AuditCompanyCreated, "company", c.ID, meta))
}
