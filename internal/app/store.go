package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vminventory/vminventory/internal/audit"
	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/platform/cache"
	"github.com/vminventory/vminventory/internal/platform/db"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/store/sqlite"
	"github.com/vminventory/vminventory/internal/users"
)

// Store is an opened relational backend.
type Store struct {
	Repositories Repositories
	// AuditSink writes audit entries straight to the audit_logs table.
	AuditSink shared.Auditor
	Close     func()
}

// OpenStore connects to the backend chosen by STORE_DRIVER and brings its
// schema up to date.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case StoreDriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath, sqlite.WithDebug(cfg.SQLiteDebug))
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", slog.String("path", cfg.SQLitePath))
		return &Store{
			Repositories: Repositories{
				Roles:     s.Roles,
				Companies: s.Companies,
				Users:     s.Users,
				Machines:  s.Machines,
				Audit:     s.Audit,
			},
			AuditSink: s.Audit,
			Close: func() {
				if err := s.Close(); err != nil {
					logger.Warn("sqlite close", slog.Any("error", err))
				}
			},
		}, nil
	case StoreDriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres store opened")
		return &Store{
			Repositories: Repositories{
				Roles:     roles.NewRepository(pool),
				Companies: companies.NewRepository(pool),
				Users:     users.NewRepository(pool),
				Machines:  machines.NewRepository(pool),
				Audit:     audit.NewRepository(pool),
			},
			AuditSink: shared.NewAuditLogger(pool),
			Close:     pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// RedisOptions returns the Redis location shared by sessions and jobs.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
