package app

import (
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/vminventory/vminventory/internal/audit"
	audithttp "github.com/vminventory/vminventory/internal/audit/http"
	"github.com/vminventory/vminventory/internal/auth"
	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/observability"
	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/users"
	"github.com/vminventory/vminventory/jobs"
)

// Repositories bundles one implementation of every repository port. Both the
// PostgreSQL and the SQLite stores provide a full set.
type Repositories struct {
	Roles     roles.RepositoryPort
	Companies companies.Repository
	Users     users.RepositoryPort
	Machines  machines.RepositoryPort
	Audit     audit.Repository
}

// Dependencies are the infrastructure pieces the API is assembled from.
type Dependencies struct {
	Config       *Config
	Logger       *slog.Logger
	Repositories Repositories
	Sessions     *shared.SessionManager
	Auditor      shared.Auditor
	Inspector    *asynq.Inspector
	Metrics      *observability.Metrics
	AccessLog    bool
}

// API holds the assembled services and the HTTP handler.
type API struct {
	Roles        *roles.Service
	Companies    *companies.Service
	Users        *users.Service
	Machines     *machines.Service
	Auth         *auth.Service
	Audit        *audit.Service
	Bootstrapper *Bootstrapper
	Router       http.Handler
}

// NewAPI wires services and handlers over the given repositories.
func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auditor := deps.Auditor
	if auditor == nil {
		auditor = shared.LogAuditor{Logger: logger}
	}
	hasher := shared.PasswordHasher{Cost: shared.DefaultBcryptCost}
	if deps.Config != nil && deps.Config.BcryptCost > 0 {
		hasher.Cost = deps.Config.BcryptCost
	}
	repos := deps.Repositories

	rolesService := roles.NewService(repos.Roles, logger)
	companiesService := companies.NewService(repos.Companies, rolesService, hasher, auditor, logger)
	usersService := users.NewService(repos.Users, rolesService, companiesService, hasher, auditor, logger)
	machinesService := machines.NewService(repos.Machines, auditor, logger)
	authService := auth.NewService(usersService, deps.Sessions, hasher, logger)
	var auditService *audit.Service
	var auditHandler *audithttp.Handler
	if repos.Audit != nil {
		auditService = audit.NewService(repos.Audit, logger)
		auditHandler = audithttp.NewHandler(logger, auditService)
	}

	rbacMiddleware := rbac.Middleware{Logger: logger}
	var jobHandler *jobs.Handler
	if deps.Inspector != nil {
		jobHandler = jobs.NewHandler(deps.Inspector, logger)
	}

	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           deps.Config,
		SessionManager:   deps.Sessions,
		AuthHandler:      auth.NewHandler(logger, authService, rbacMiddleware),
		RolesHandler:     roles.NewHandler(logger, rolesService, rbacMiddleware),
		CompaniesHandler: companies.NewHandler(logger, companiesService, rbacMiddleware),
		UsersHandler:     users.NewHandler(logger, usersService, rbacMiddleware),
		MachinesHandler:  machines.NewHandler(logger, machinesService, rbacMiddleware),
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          deps.Metrics,
		AccessLog:        deps.AccessLog,
	})

	return &API{
		Roles:     rolesService,
		Companies: companiesService,
		Users:     usersService,
		Machines:  machinesService,
		Auth:      authService,
		Audit:     auditService,
		Bootstrapper: &Bootstrapper{
			Roles:     rolesService,
			Companies: repos.Companies,
			Users:     repos.Users,
			Hasher:    hasher,
			Logger:    logger,
		},
		Router: router,
	}
}
