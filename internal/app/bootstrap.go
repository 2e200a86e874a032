package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/users"
)

// BootstrapAdmin describes the first super admin account.
type BootstrapAdmin struct {
	Email    string
	Password string
	Name     string
	Company  string
}

// AdminFromConfig extracts the bootstrap account settings.
func AdminFromConfig(cfg *Config) BootstrapAdmin {
	if cfg == nil {
		return BootstrapAdmin{}
	}
	return BootstrapAdmin{
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		Name:     cfg.BootstrapAdminName,
		Company:  cfg.BootstrapCompany,
	}
}

// Bootstrapper seeds roles and the initial super admin.
type Bootstrapper struct {
	Roles     *roles.Service
	Companies companies.Repository
	Users     users.RepositoryPort
	Hasher    shared.PasswordHasher
	Logger    *slog.Logger
}

// Run seeds the built-in roles, then creates the bootstrap super admin and
// its company unless an account with that email already exists. Every step
// is idempotent.
func (b *Bootstrapper) Run(ctx context.Context, admin BootstrapAdmin) error {
	seeded, err := b.Roles.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	email := shared.NormalizeEmail(admin.Email)
	_, err = b.Users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	var superAdmin roles.Role
	for _, role := range seeded {
		if role.Name == shared.RoleSuperAdmin {
			superAdmin = role
		}
	}
	hash, err := b.Hasher.Hash(admin.Password)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	companyName := shared.NormalizeName(admin.Company)
	if companyName == "" {
		companyName = "Platform"
	}
	company, err := b.Companies.CreateWithAdmin(ctx, companies.Company{Name: companyName}, companies.AdminAccount{
		Name:         shared.NormalizeName(admin.Name),
		Email:        email,
		PasswordHash: hash,
		RoleID:       superAdmin.ID,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	if b.Logger != nil {
		b.Logger.Info("bootstrap super admin created",
			slog.String("email", email),
			slog.Int64("company_id", company.ID),
		)
	}
	return nil
}
