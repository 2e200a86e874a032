package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	CreateUser(ctx context.Context, user User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
}

// RoleFinder resolves role references.
type RoleFinder interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// CompanyFinder resolves company references.
type CompanyFinder interface {
	Get(ctx context.Context, id int64) (companies.Company, error)
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	roles     RoleFinder
	companies CompanyFinder
	hasher    shared.PasswordHasher
	validator *shared.Validator
	auditor   shared.Auditor
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleFinder, companies CompanyFinder, hasher shared.PasswordHasher, auditor shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		roles:     roles,
		companies: companies,
		hasher:    hasher,
		validator: shared.NewValidator(),
		auditor:   auditor,
		logger:    logger,
	}
}

// CreateUser validates the request, checks the caller may create a user
// with the requested role in the requested company, then stores the user
// with a bcrypt hash of the password.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	p, err := rbac.Authenticated(ctx)
	if err != nil {
		return User{}, err
	}
	req.Name = shared.NormalizeName(req.Name)
	req.Email = shared.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return User{}, err
	}
	if err := rbac.CanCreateUserIn(p, req.CompanyID); err != nil {
		return User{}, err
	}

	role, err := s.roles.GetRole(ctx, req.RoleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.Validation("roleId", "role %d does not exist", req.RoleID)
		}
		return User{}, shared.Persistence("create user", err)
	}
	if err := rbac.CanCreateUser(p, role.Name, req.CompanyID); err != nil {
		return User{}, err
	}
	company, err := s.companies.Get(ctx, req.CompanyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.Validation("companyId", "company %d does not exist", req.CompanyID)
		}
		return User{}, shared.Persistence("create user", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
		CompanyID:    company.ID,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return User{}, fmt.Errorf("%w: email %s is already registered", shared.ErrConflict, req.Email)
		}
		return User{}, shared.Persistence("create user", err)
	}
	user.Role = &role
	user.Company = &company

	shared.RecordAudit(ctx, s.auditor, s.logger, shared.NewAuditLog(ctx, shared.AuditUserCreated, "user", user.ID, map[string]any{
		"email":      user.Email,
		"role":       role.Name,
		"company_id": company.ID,
	}))
	return user, nil
}

// ListUsers returns all users with their role and company.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	if _, err := rbac.Authenticated(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, shared.Persistence("list users", err)
	}
	return users, nil
}

// GetUser returns a joined user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, shared.Persistence("get user", err)
	}
	return user, nil
}

// FindByEmail returns a joined user, including the password hash.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	user, err := s.repo.FindByEmail(ctx, shared.NormalizeEmail(email))
	if err != nil {
		return User{}, shared.Persistence("find user", err)
	}
	return user, nil
}
