package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vminventory/vminventory/internal/audit"
	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/users"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedRoles(t *testing.T, s *Store) map[string]roles.Role {
	t.Helper()
	out := map[string]roles.Role{}
	for _, name := range shared.RoleNames() {
		role, err := s.Roles.FindOrCreate(context.Background(), name)
		require.NoError(t, err)
		out[name] = role
	}
	return out
}

func TestFindOrCreateRolesIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	first := seedRoles(t, s)
	second := seedRoles(t, s)
	assert.Equal(t, first[shared.RoleAdmin].ID, second[shared.RoleAdmin].ID)

	list, err := s.Roles.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = s.Roles.GetRoleByName(context.Background(), "auditor")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = s.Roles.GetRole(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMigrateTwice(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestCompanyWithAdminConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	r := seedRoles(t, s)
	admin := companies.AdminAccount{Name: "Owner", Email: "owner@acme.io", PasswordHash: "x", RoleID: r[shared.RoleAdmin].ID}

	acme, err := s.Companies.CreateWithAdmin(ctx, companies.Company{Name: "Acme"}, admin)
	require.NoError(t, err)
	assert.NotZero(t, acme.ID)

	_, err = s.Companies.CreateWithAdmin(ctx, companies.Company{Name: "Copycat"}, admin)
	require.ErrorIs(t, err, shared.ErrConflict)

	list, err := s.Companies.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Acme", list[0].Name)

	owner, err := s.Users.FindByEmail(ctx, "owner@acme.io")
	require.NoError(t, err)
	require.NotNil(t, owner.Role)
	require.NotNil(t, owner.Company)
	assert.Equal(t, shared.RoleAdmin, owner.Role.Name)
	assert.Equal(t, acme.ID, owner.Company.ID)
}

func TestUserForeignKeysAndConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	r := seedRoles(t, s)
	acme, err := s.Companies.Create(ctx, companies.Company{Name: "Acme"})
	require.NoError(t, err)

	_, err = s.Users.CreateUser(ctx, users.User{Email: "x@acme.io", PasswordHash: "x", RoleID: r[shared.RoleUser].ID, CompanyID: 999})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "role or company does not exist", err.Error())

	u := users.User{Name: "Jane", Email: "jane@acme.io", PasswordHash: "x", RoleID: r[shared.RoleUser].ID, CompanyID: acme.ID}
	created, err := s.Users.CreateUser(ctx, u)
	require.NoError(t, err)
	_, err = s.Users.CreateUser(ctx, u)
	assert.ErrorIs(t, err, shared.ErrConflict)

	got, err := s.Users.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company.Name)
	_, err = s.Users.GetUser(ctx, 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	list, err := s.Users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.RoleUser, list[0].Role.Name)
}

func TestMachineAssignment(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	r := seedRoles(t, s)
	acme, err := s.Companies.Create(ctx, companies.Company{Name: "Acme"})
	require.NoError(t, err)
	jane, err := s.Users.CreateUser(ctx, users.User{Name: "Jane", Email: "jane@acme.io", PasswordHash: "x", RoleID: r[shared.RoleAdmin].ID, CompanyID: acme.ID})
	require.NoError(t, err)

	created, err := s.Machines.CreateMachine(ctx, machines.Machine{MemorySize: 4096, DiskSize: 80})
	require.NoError(t, err)
	assert.Nil(t, created.CompanyID)
	assert.Nil(t, created.AdminID)

	err = s.Machines.WithTx(ctx, func(ctx context.Context, tx machines.TxRepository) error {
		m, err := tx.LockMachine(ctx, created.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 4096, m.MemorySize)

		ok, err := tx.CompanyExists(ctx, acme.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.CompanyExists(ctx, 999)
		require.NoError(t, err)
		assert.False(t, ok)

		companyID, err := tx.UserCompany(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, acme.ID, companyID)
		_, err = tx.UserCompany(ctx, 999)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		return tx.UpdateOwnership(ctx, created.ID, machines.Ownership{CompanyID: &acme.ID, AdminID: &jane.ID})
	})
	require.NoError(t, err)

	got, err := s.Machines.GetMachine(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Company)
	require.NotNil(t, got.Admin)
	assert.Equal(t, "Acme", got.Company.Name)
	assert.Equal(t, "jane@acme.io", got.Admin.Email)

	_, err = s.Machines.CreateMachine(ctx, machines.Machine{MemorySize: 1024, DiskSize: 10})
	require.NoError(t, err)
	list, err := s.Machines.ListMachines(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotNil(t, list[0].Company)
	assert.Nil(t, list[1].Company)
	assert.Nil(t, list[1].Admin)

	_, err = s.Machines.GetMachine(ctx, 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMachineTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acme, err := s.Companies.Create(ctx, companies.Company{Name: "Acme"})
	require.NoError(t, err)
	created, err := s.Machines.CreateMachine(ctx, machines.Machine{MemorySize: 4096, DiskSize: 80})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Machines.WithTx(ctx, func(ctx context.Context, tx machines.TxRepository) error {
		if err := tx.UpdateOwnership(ctx, created.ID, machines.Ownership{CompanyID: &acme.ID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Machines.GetMachine(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CompanyID)
}

func TestAuditTimeline(t *testing.T) {
	ctx := shared.ContextWithPrincipal(context.Background(), shared.Principal{UserID: 5, Role: shared.RoleAdmin})
	s := openTestStore(t)

	require.NoError(t, s.Audit.Record(ctx, shared.NewAuditLog(ctx, shared.AuditMachineCreated, "machine", 3, nil)))
	require.NoError(t, s.Audit.Record(ctx, shared.NewAuditLog(ctx, shared.AuditMachineAssigned, "machine", 3, map[string]any{"company_id": 10})))
	require.NoError(t, s.Audit.Record(context.Background(), shared.NewAuditLog(context.Background(), shared.AuditCompanyCreated, "company", 10, nil)))
	require.Error(t, s.Audit.Record(ctx, shared.AuditLog{}))

	rows, err := s.Audit.Timeline(context.Background(), audit.TimelineQuery{Entity: "machine", EntityID: "3"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, shared.AuditMachineAssigned, rows[0].Action)
	require.NotNil(t, rows[0].ActorID)
	assert.Equal(t, int64(5), *rows[0].ActorID)
	assert.EqualValues(t, 10, rows[0].Meta["company_id"])

	rows, err = s.Audit.Timeline(context.Background(), audit.TimelineQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, shared.AuditMachineCreated, rows[0].Action)

	rows, err = s.Audit.Timeline(context.Background(), audit.TimelineQuery{ActorID: 5, Action: shared.AuditCompanyCreated})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.Audit.Timeline(context.Background(), audit.TimelineQuery{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
