package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vminventory/vminventory/internal/audit"
	"github.com/vminventory/vminventory/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newAuditRouter(service *stubTimelineService) http.Handler {
	h := NewHandler(nil, service)
	h.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleSuperAdmin}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{result: audit.Result{Rows: []audit.TimelineRow{{Action: "machine.created"}}, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	router := newAuditRouter(service)

	rr := get(router, "/timeline?entity=machine&entityId=4&actorId=2&page=3&pageSize=10")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"action":"machine.created"`)

	f := service.lastFilters
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), f.To)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, "machine", f.Entity)
	assert.Equal(t, "4", f.EntityID)
	assert.Equal(t, int64(2), f.ActorID)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 10, f.PageSize)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	for _, query := range []string{
		"to=yesterday",
		"from=2026-03-05&to=2026-03-01",
		"from=2025-01-01&to=2026-03-01",
		"page=0",
		"actorId=abc",
	} {
		rr := get(router, "/timeline?"+query)
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{
		At:       time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
		Action:   "company.created",
		Entity:   "company",
		EntityID: "1",
	}}}
	router := newAuditRouter(service)

	rr := get(router, "/export.csv?action=company.created")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "at,actor_id,action"))
	assert.Contains(t, rr.Body.String(), "company.created,company,1")
	assert.Equal(t, "company.created", service.lastFilters.Action)
}

func TestExportRateLimited(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	for i := 0; i < exportRateLimit; i++ {
		require.Equal(t, http.StatusOK, get(router, "/export.csv").Code)
	}
	rr := get(router, "/export.csv")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "too many export requests")
}
