package sqlite

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/audit"
	"github.com/vminventory/vminventory/internal/shared"
)

// AuditRepository stores audit records in audit_logs.
type AuditRepository struct {
	db *bun.DB
}

// Record implements shared.Auditor.
func (r *AuditRepository) Record(ctx context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	row := &auditLogModel{
		Action:     log.Action,
		Entity:     log.Entity,
		EntityID:   log.EntityID,
		Meta:       log.Meta,
		OccurredAt: log.At.UTC(),
	}
	if log.ActorID != 0 {
		row.ActorID = &log.ActorID
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	return err
}

// Timeline implements audit.Repository.
func (r *AuditRepository) Timeline(ctx context.Context, q audit.TimelineQuery) ([]audit.TimelineRow, error) {
	var rows []auditLogModel
	sel := r.db.NewSelect().Model(&rows)
	if !q.From.IsZero() {
		sel = sel.Where("al.occurred_at >= ?", q.From.UTC())
	}
	if !q.Before.IsZero() {
		sel = sel.Where("al.occurred_at < ?", q.Before.UTC())
	}
	if q.ActorID != 0 {
		sel = sel.Where("al.actor_id = ?", q.ActorID)
	}
	if q.Entity != "" {
		sel = sel.Where("al.entity = ?", q.Entity)
	}
	if q.EntityID != "" {
		sel = sel.Where("al.entity_id = ?", q.EntityID)
	}
	if q.Action != "" {
		sel = sel.Where("al.action = ?", q.Action)
	}
	sel = sel.OrderExpr("al.occurred_at DESC, al.id DESC")
	if q.Limit > 0 {
		sel = sel.Limit(q.Limit).Offset(q.Offset)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]audit.TimelineRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, audit.TimelineRow{
			At:       row.OccurredAt,
			ActorID:  row.ActorID,
			Action:   row.Action,
			Entity:   row.Entity,
			EntityID: row.EntityID,
			Meta:     row.Meta,
		})
	}
	return out, nil
}

var _ audit.Repository = (*AuditRepository)(nil)
var _ shared.Auditor = (*AuditRepository)(nil)
