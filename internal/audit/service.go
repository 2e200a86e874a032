package audit

import (
	"context"
	"log/slog"

	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// maxExportRows caps CSV exports.
	maxExportRows = 10000
)

// Repository reads audit_logs.
type Repository interface {
	Timeline(ctx context.Context, q TimelineQuery) ([]TimelineRow, error)
}

// Service serves the audit timeline to super admins.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds the audit timeline service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Timeline returns one page of audit entries.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if err := authorize(ctx); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	q := toQuery(filters)
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1
	rows, err := s.repo.Timeline(ctx, q)
	if err != nil {
		return Result{}, shared.Persistence("load audit timeline", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching entry up to the export cap.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if err := authorize(ctx); err != nil {
		return nil, err
	}
	q := toQuery(filters)
	q.Limit = maxExportRows
	rows, err := s.repo.Timeline(ctx, q)
	if err != nil {
		return nil, shared.Persistence("export audit timeline", err)
	}
	if len(rows) == maxExportRows {
		s.logger.Warn("audit export truncated", slog.Int("rows", len(rows)))
	}
	return rows, nil
}

func authorize(ctx context.Context) error {
	p, err := rbac.Authenticated(ctx)
	if err != nil {
		return err
	}
	return rbac.CanReadAudit(p)
}

func toQuery(f TimelineFilters) TimelineQuery {
	q := TimelineQuery{
		From:     f.From,
		ActorID:  f.ActorID,
		Entity:   f.Entity,
		EntityID: f.EntityID,
		Action:   f.Action,
	}
	if !f.To.IsZero() {
		q.Before = f.To.AddDate(0, 0, 1)
	}
	return q
}
