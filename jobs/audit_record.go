package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/vminventory/vminventory/internal/jobs"
	"github.com/vminventory/vminventory/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditRecordJob writes queued audit entries to durable storage.
type AuditRecordJob struct {
	Store   shared.Auditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the audit handler.
func NewAuditRecordJob(store shared.Auditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle decodes the entry and stores it. Malformed payloads are dropped.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	var entry shared.AuditLog
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		j.logger().Warn("drop malformed audit payload", slog.Any("error", err))
		return fmt.Errorf("decode audit payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := entry.Validate(); err != nil {
		j.logger().Warn("drop invalid audit entry", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskAuditRecord)
	defer func() {
		err = tracker.End(err)
	}()

	if err := j.Store.Record(ctx, entry); err != nil {
		j.logger().Error("store audit entry",
			slog.String("action", entry.Action),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err),
		)
		return err
	}
	j.metrics().AddAudited(entry.Action)
	return nil
}

func (j *AuditRecordJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRecord))
	}
	return slog.Default().With(slog.String("job", TaskAuditRecord))
}

func (j *AuditRecordJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
