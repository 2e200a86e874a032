package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/vminventory/vminventory/internal/jobs"
	"github.com/vminventory/vminventory/internal/shared"
)

type memAuditor struct {
	entries []shared.AuditLog
	err     error
}

func (m *memAuditor) Record(_ context.Context, log shared.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, log)
	return nil
}

func sampleEntry() shared.AuditLog {
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 4, Role: shared.RoleAdmin})
	return shared.NewAuditLog(ctx, shared.AuditMachineCreated, "machine", 12, map[string]any{"memory_size": 4096})
}

func TestNewAuditTask(t *testing.T) {
	task, err := NewAuditTask(sampleEntry())
	require.NoError(t, err)
	assert.Equal(t, TaskAuditRecord, task.Type())

	var decoded shared.AuditLog
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	assert.Equal(t, "12", decoded.EntityID)
	assert.Equal(t, int64(4), decoded.ActorID)

	_, err = NewAuditTask(shared.AuditLog{Action: "x"})
	assert.Error(t, err)
}

func TestAuditRecordJobStoresEntry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	store := &memAuditor{}
	job := NewAuditRecordJob(store, nil, metrics)

	task, err := NewAuditTask(sampleEntry())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, store.entries, 1)
	assert.Equal(t, shared.AuditMachineCreated, store.entries[0].Action)
	count, err := testutil.GatherAndCount(reg, "vminventory_audit_entries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAuditRecordJobSkipsMalformedPayload(t *testing.T) {
	job := NewAuditRecordJob(&memAuditor{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRecord, []byte(`{"action":"machine.created"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditRecordJobRetriesStoreFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	boom := errors.New("database unavailable")
	job := NewAuditRecordJob(&memAuditor{err: boom}, nil, jobmetrics.NewMetrics(reg))

	task, err := NewAuditTask(sampleEntry())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	count, err := testutil.GatherAndCount(reg, "vminventory_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body QueueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}
