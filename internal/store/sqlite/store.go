// Package sqlite implements the inventory repositories on an embedded SQLite
// database through bun. It backs STORE_DRIVER=sqlite and the end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Store wraps bun.DB and provides repository access.
type Store struct {
	db *bun.DB

	Roles     *RoleRepository
	Companies *CompanyRepository
	Users     *UserRepository
	Machines  *MachineRepository
	Audit     *AuditRepository
}

// Option configures the store.
type Option func(*Store)

// WithDebug enables query logging.
func WithDebug(enabled bool) Option {
	return func(s *Store) {
		if enabled {
			s.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
		}
	}
}

// Open opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open: %w", err)
	}
	// An in-memory database only lives on the connection that created it.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store/sqlite: enable foreign keys: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.Roles = &RoleRepository{db: db}
	s.Companies = &CompanyRepository{db: db}
	s.Users = &UserRepository{db: db}
	s.Machines = &MachineRepository{db: db}
	s.Audit = &AuditRepository{db: db}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bun.DB.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type table struct {
	model       any
	foreignKeys []string
}

// Migrate creates tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	tables := []table{
		{model: (*roleModel)(nil)},
		{model: (*companyModel)(nil)},
		{model: (*userModel)(nil), foreignKeys: []string{
			`("role_id") REFERENCES "roles" ("id")`,
			`("company_id") REFERENCES "companies" ("id")`,
		}},
		{model: (*machineModel)(nil), foreignKeys: []string{
			`("company_id") REFERENCES "companies" ("id")`,
			`("admin_id") REFERENCES "users" ("id")`,
		}},
		{model: (*auditLogModel)(nil)},
	}
	for _, t := range tables {
		q := s.db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("store/sqlite: create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_company_id ON users(company_id)",
		"CREATE INDEX IF NOT EXISTS idx_machines_company_id ON machines(company_id)",
		"CREATE INDEX IF NOT EXISTS idx_machines_admin_id ON machines(admin_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity, entity_id)",
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("store/sqlite: create index: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
