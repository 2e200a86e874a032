package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vminventory/vminventory/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit trail entry.
	TaskAuditRecord = "audit:record"
)

// auditMaxRetry bounds redelivery of audit tasks when the database is down.
const auditMaxRetry = 5

// NewAuditTask constructs an Asynq task carrying the audit entry.
func NewAuditTask(entry shared.AuditLog) (*asynq.Task, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(auditMaxRetry),
		asynq.Timeout(30*time.Second),
	), nil
}
