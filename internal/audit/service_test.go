package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vminventory/vminventory/internal/shared"
)

type stubRepo struct {
	rows    []TimelineRow
	queries []TimelineQuery
}

func (s *stubRepo) Timeline(_ context.Context, q TimelineQuery) ([]TimelineRow, error) {
	s.queries = append(s.queries, q)
	rows := s.rows
	if q.Offset < len(rows) {
		rows = rows[q.Offset:]
	} else {
		rows = nil
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func rowsOf(n int) []TimelineRow {
	out := make([]TimelineRow, n)
	for i := range out {
		out[i] = TimelineRow{Action: shared.AuditMachineCreated, Entity: "machine", EntityID: "1"}
	}
	return out
}

func asRole(role string) context.Context {
	return shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 1, Role: role})
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: rowsOf(25)}
	svc := NewService(repo, nil)

	res, err := svc.Timeline(asRole(shared.RoleSuperAdmin), TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 20, HasNext: true, NextPage: 2}, res.Paging)
	assert.Equal(t, 21, repo.queries[0].Limit)

	res, err = svc.Timeline(asRole(shared.RoleSuperAdmin), TimelineFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, PagingInfo{Page: 2, PageSize: 20, PrevPage: 1}, res.Paging)
	assert.Equal(t, 20, repo.queries[1].Offset)

	_, err = svc.Timeline(asRole(shared.RoleSuperAdmin), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize+1, repo.queries[2].Limit)
}

func TestTimelineInclusiveEndDay(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(asRole(shared.RoleSuperAdmin), TimelineFilters{From: day, To: day, Entity: "machine"})
	require.NoError(t, err)
	q := repo.queries[0]
	assert.Equal(t, day, q.From)
	assert.Equal(t, day.AddDate(0, 0, 1), q.Before)
	assert.Equal(t, "machine", q.Entity)
}

func TestTimelineRequiresSuperAdmin(t *testing.T) {
	svc := NewService(&stubRepo{}, nil)

	_, err := svc.Timeline(context.Background(), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = svc.Timeline(asRole(shared.RoleAdmin), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Export(asRole(shared.RoleUser), TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestWriteCSV(t *testing.T) {
	actor := int64(7)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := WriteCSV([]TimelineRow{
		{At: at, ActorID: &actor, Action: shared.AuditMachineAssigned, Entity: "machine", EntityID: "3", Meta: map[string]any{"company_id": 10}},
		{At: at, Action: shared.AuditCompanyCreated, Entity: "company", EntityID: "10"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	assert.Equal(t, `2026-03-01T12:00:00Z,7,machine.assigned,machine,3,"{""company_id"":10}"`, lines[1])
	assert.Equal(t, "2026-03-01T12:00:00Z,,company.created,company,10,", lines[2])
}
