package machines

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/shared"
)

type memRepo struct {
	mu        sync.Mutex
	machines  map[int64]Machine
	companies map[int64]string
	users     map[int64]int64
	updates   int
	listCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{
		machines:  map[int64]Machine{},
		companies: map[int64]string{10: "Acme", 20: "Globex"},
		users:     map[int64]int64{100: 10, 200: 20},
	}
}

func (r *memRepo) CreateMachine(_ context.Context, m Machine) (Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = int64(len(r.machines) + 1)
	r.machines[m.ID] = m
	return m, nil
}

func (r *memRepo) ListMachines(ctx context.Context) ([]Machine, error) {
	r.mu.Lock()
	r.listCalls++
	ids := make([]int64, 0, len(r.machines))
	for id := range r.machines {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	out := make([]Machine, 0, len(ids))
	for i := int64(1); i <= int64(len(ids)); i++ {
		m, err := r.GetMachine(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memRepo) GetMachine(_ context.Context, id int64) (Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[id]
	if !ok {
		return Machine{}, shared.NotFound("machine", id)
	}
	if m.CompanyID != nil {
		m.Company = &companies.Company{ID: *m.CompanyID, Name: r.companies[*m.CompanyID]}
	}
	if m.AdminID != nil {
		m.Admin = &AdminSummary{ID: *m.AdminID}
	}
	return m, nil
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, memTx{r})
}

type memTx struct {
	r *memRepo
}

func (t memTx) LockMachine(_ context.Context, id int64) (Machine, error) {
	m, ok := t.r.machines[id]
	if !ok {
		return Machine{}, shared.NotFound("machine", id)
	}
	return m, nil
}

func (t memTx) CompanyExists(_ context.Context, id int64) (bool, error) {
	_, ok := t.r.companies[id]
	return ok, nil
}

func (t memTx) UserCompany(_ context.Context, userID int64) (int64, error) {
	companyID, ok := t.r.users[userID]
	if !ok {
		return 0, shared.NotFound("user", userID)
	}
	return companyID, nil
}

func (t memTx) UpdateOwnership(_ context.Context, id int64, own Ownership) error {
	m := t.r.machines[id]
	m.CompanyID, m.AdminID = own.CompanyID, own.AdminID
	t.r.machines[id] = m
	t.r.updates++
	return nil
}

type recordingAuditor struct {
	actions []string
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

var (
	superAdmin = shared.Principal{UserID: 1, CompanyID: 10, Role: shared.RoleSuperAdmin}
	acmeAdmin  = shared.Principal{UserID: 100, CompanyID: 10, Role: shared.RoleAdmin}
	acmeUser   = shared.Principal{UserID: 101, CompanyID: 10, Role: shared.RoleUser}
)

func as(p shared.Principal) context.Context {
	return shared.ContextWithPrincipal(context.Background(), p)
}

func newTestService() (*Service, *memRepo, *recordingAuditor) {
	repo := newMemRepo()
	auditor := &recordingAuditor{}
	return NewService(repo, auditor, nil), repo, auditor
}

func id(v int64) *int64 {
	return &v
}

func TestCreateMachineStartsUnassigned(t *testing.T) {
	svc, _, auditor := newTestService()

	m, err := svc.CreateMachine(as(acmeAdmin), CreateMachineRequest{MemorySize: 4096, DiskSize: 80})
	require.NoError(t, err)
	assert.Equal(t, 4096, m.MemorySize)
	assert.Equal(t, 80, m.DiskSize)
	assert.Nil(t, m.CompanyID)
	assert.Nil(t, m.AdminID)
	assert.False(t, m.Assigned())
	assert.Equal(t, []string{shared.AuditMachineCreated}, auditor.actions)
}

func TestCreateMachineRejects(t *testing.T) {
	cases := []struct {
		name string
		ctx  context.Context
		req  CreateMachineRequest
		want error
	}{
		{"anonymous", context.Background(), CreateMachineRequest{MemorySize: 1, DiskSize: 1}, shared.ErrUnauthorized},
		{"plain user", as(acmeUser), CreateMachineRequest{MemorySize: 1, DiskSize: 1}, shared.ErrForbidden},
		{"zero memory", as(acmeAdmin), CreateMachineRequest{DiskSize: 80}, shared.ErrValidation},
		{"negative disk", as(acmeAdmin), CreateMachineRequest{MemorySize: 4096, DiskSize: -1}, shared.ErrValidation},
		{"memory over int4", as(acmeAdmin), CreateMachineRequest{MemorySize: 2147483648, DiskSize: 80}, shared.ErrValidation},
		{"disk over int4", as(acmeAdmin), CreateMachineRequest{MemorySize: 4096, DiskSize: 2147483648}, shared.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			_, err := svc.CreateMachine(tc.ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, repo.machines)
		})
	}
}

func TestCreateMachineSizeBoundary(t *testing.T) {
	svc, _, _ := newTestService()
	m, err := svc.CreateMachine(as(acmeAdmin), CreateMachineRequest{MemorySize: 2147483647, DiskSize: 2147483647})
	require.NoError(t, err)
	assert.Equal(t, 2147483647, m.MemorySize)

	_, err = svc.CreateMachine(as(acmeAdmin), CreateMachineRequest{MemorySize: 2147483648, DiskSize: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "memorySize must be at most 2147483647", err.Error())
}

func TestAssignMachineCompanyThenAdmin(t *testing.T) {
	svc, _, auditor := newTestService()
	ctx := as(superAdmin)
	created, err := svc.CreateMachine(ctx, CreateMachineRequest{MemorySize: 4096, DiskSize: 80})
	require.NoError(t, err)

	m, err := svc.AssignMachine(ctx, created.ID, AssignRequest{CompanyID: shared.Some[int64](10)})
	require.NoError(t, err)
	assert.Equal(t, id(10), m.CompanyID)
	assert.Nil(t, m.AdminID)
	require.NotNil(t, m.Company)
	assert.Equal(t, "Acme", m.Company.Name)

	m, err = svc.AssignMachine(ctx, created.ID, AssignRequest{AdminID: shared.Some[int64](100)})
	require.NoError(t, err)
	assert.Equal(t, id(10), m.CompanyID)
	assert.Equal(t, id(100), m.AdminID)
	assert.Equal(t, []string{shared.AuditMachineCreated, shared.AuditMachineAssigned, shared.AuditMachineAssigned}, auditor.actions)
}

func TestAssignMachineNoOpSkipsWrite(t *testing.T) {
	svc, repo, auditor := newTestService()
	ctx := as(superAdmin)
	created, err := svc.CreateMachine(ctx, CreateMachineRequest{MemorySize: 1024, DiskSize: 10})
	require.NoError(t, err)

	_, err = svc.AssignMachine(ctx, created.ID, AssignRequest{})
	require.NoError(t, err)
	_, err = svc.AssignMachine(ctx, created.ID, AssignRequest{CompanyID: shared.Some[int64](10)})
	require.NoError(t, err)
	_, err = svc.AssignMachine(ctx, created.ID, AssignRequest{CompanyID: shared.Some[int64](10)})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.updates)
	assert.Equal(t, []string{shared.AuditMachineCreated, shared.AuditMachineAssigned}, auditor.actions)
}

func TestAssignMachineErrors(t *testing.T) {
	cases := []struct {
		name string
		ctx  context.Context
		id   int64
		req  AssignRequest
		want error
	}{
		{"anonymous", context.Background(), 1, AssignRequest{CompanyID: shared.Some[int64](10)}, shared.ErrUnauthorized},
		{"bad id", as(superAdmin), 0, AssignRequest{}, shared.ErrValidation},
		{"missing machine", as(superAdmin), 99, AssignRequest{CompanyID: shared.Some[int64](10)}, shared.ErrNotFound},
		{"null company", as(superAdmin), 1, AssignRequest{CompanyID: shared.Null[int64]()}, shared.ErrValidation},
		{"null admin", as(superAdmin), 1, AssignRequest{AdminID: shared.Null[int64]()}, shared.ErrValidation},
		{"zero company", as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](0)}, shared.ErrValidation},
		{"unknown company", as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](99)}, shared.ErrValidation},
		{"unknown admin", as(superAdmin), 1, AssignRequest{AdminID: shared.Some[int64](999)}, shared.ErrValidation},
		{"admin outside company", as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](10), AdminID: shared.Some[int64](200)}, shared.ErrValidation},
		{"plain user", as(acmeUser), 1, AssignRequest{CompanyID: shared.Some[int64](10)}, shared.ErrForbidden},
		{"admin to other company", as(acmeAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](20)}, shared.ErrForbidden},
		{"admin delegates to outsider", as(acmeAdmin), 1, AssignRequest{AdminID: shared.Some[int64](200)}, shared.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10}

			_, err := svc.AssignMachine(tc.ctx, tc.id, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, repo.updates)
		})
	}
}

func TestAssignMachineOwnedByOtherCompany(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10, CompanyID: id(20)}

	_, err := svc.AssignMachine(as(acmeAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](10)})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	m, err := svc.AssignMachine(as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](10)})
	require.NoError(t, err)
	assert.Equal(t, id(10), m.CompanyID)
}

func TestAssignMachineCompanyMoveKeepsAdminConsistent(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10, CompanyID: id(10), AdminID: id(100)}

	_, err := svc.AssignMachine(as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](20)})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "user 100 does not belong to company 20", err.Error())

	m, err := svc.AssignMachine(as(superAdmin), 1, AssignRequest{
		CompanyID: shared.Some[int64](20),
		AdminID:   shared.Some[int64](200),
	})
	require.NoError(t, err)
	assert.Equal(t, id(20), m.CompanyID)
	assert.Equal(t, id(200), m.AdminID)
}

func TestListMachinesEmbedsCompany(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10, CompanyID: id(10)}
	repo.machines[2] = Machine{ID: 2, MemorySize: 2048, DiskSize: 20}

	_, err := svc.ListMachines(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	list, err := svc.ListMachines(as(acmeUser))
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Company)
	assert.Equal(t, "Acme", list[0].Company.Name)
	assert.Nil(t, list[1].Company)
}

type gatedRepo struct {
	*memRepo
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{memRepo: newMemRepo(), started: make(chan struct{}), release: make(chan struct{})}
}

// ListMachines blocks the first call until release is closed.
func (g *gatedRepo) ListMachines(ctx context.Context) ([]Machine, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.memRepo.ListMachines(ctx)
}

type listResult struct {
	list []Machine
	err  error
}

func listAsync(ctx context.Context, svc *Service) <-chan listResult {
	out := make(chan listResult, 1)
	go func() {
		list, err := svc.ListMachines(ctx)
		out <- listResult{list: list, err: err}
	}()
	return out
}

func TestListMachinesAfterAssignSeesNewOwner(t *testing.T) {
	repo := newGatedRepo()
	repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10}
	svc := NewService(repo, &recordingAuditor{}, nil)

	stale := listAsync(as(acmeUser), svc)
	<-repo.started

	_, err := svc.AssignMachine(as(superAdmin), 1, AssignRequest{CompanyID: shared.Some[int64](10)})
	require.NoError(t, err)

	fresh, err := svc.ListMachines(as(acmeUser))
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, id(10), fresh[0].CompanyID)

	close(repo.release)
	res := <-stale
	require.NoError(t, res.err)
}

func TestListMachinesSurvivesFirstCallerCancel(t *testing.T) {
	repo := newGatedRepo()
	repo.machines[1] = Machine{ID: 1, MemorySize: 1024, DiskSize: 10}
	svc := NewService(repo, &recordingAuditor{}, nil)

	ctx, cancel := context.WithCancel(as(acmeUser))
	first := listAsync(ctx, svc)
	<-repo.started
	second := listAsync(as(acmeUser), svc)

	cancel()
	res := <-first
	require.ErrorIs(t, res.err, context.Canceled)

	close(repo.release)
	res = <-second
	require.NoError(t, res.err)
	require.Len(t, res.list, 1)
}

func TestAssignMachineAdminMustBelongToCompany(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.companies[5] = "Initech"
	repo.users[9] = 5
	repo.users[8] = 20
	repo.machines[1] = Machine{ID: 1, MemorySize: 4096, DiskSize: 80}
	ctx := as(superAdmin)

	m, err := svc.AssignMachine(ctx, 1, AssignRequest{CompanyID: shared.Some[int64](5)})
	require.NoError(t, err)
	assert.Equal(t, id(5), m.CompanyID)

	_, err = svc.AssignMachine(ctx, 1, AssignRequest{AdminID: shared.Some[int64](8)})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "user 8 does not belong to company 5", err.Error())

	m, err = svc.AssignMachine(ctx, 1, AssignRequest{AdminID: shared.Some[int64](9)})
	require.NoError(t, err)
	assert.Equal(t, id(5), m.CompanyID)
	assert.Equal(t, id(9), m.AdminID)
}
