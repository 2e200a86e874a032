package roles

import (
	"context"
	"log/slog"

	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	FindOrCreate(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Seed find-or-creates every built-in role. Safe to call on every start.
func (s *Service) Seed(ctx context.Context) ([]Role, error) {
	seeded := make([]Role, 0, len(shared.RoleNames()))
	for _, name := range shared.RoleNames() {
		role, err := s.repo.FindOrCreate(ctx, name)
		if err != nil {
			return nil, shared.Persistence("seed roles", err)
		}
		seeded = append(seeded, role)
	}
	s.logger.Info("roles seeded", slog.Int("count", len(seeded)))
	return seeded, nil
}

// ListRoles returns all roles to any authenticated caller.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	if _, err := rbac.Authenticated(ctx); err != nil {
		return nil, err
	}
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, shared.Persistence("list roles", err)
	}
	return roles, nil
}

// GetRole resolves a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, shared.Persistence("get role", err)
	}
	return role, nil
}

// RoleByName resolves a seeded role by name.
func (s *Service) RoleByName(ctx context.Context, name string) (Role, error) {
	role, err := s.repo.GetRoleByName(ctx, name)
	if err != nil {
		return Role{}, shared.Persistence("get role", err)
	}
	return role, nil
}
