package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/machines"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/users"
)

type roleModel struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,unique,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (m *roleModel) toRole() roles.Role {
	return roles.Role{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

type companyModel struct {
	bun.BaseModel `bun:"table:companies,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *companyModel) toCompany() companies.Company {
	return companies.Company{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Name         string    `bun:"name,notnull"`
	Email        string    `bun:"email,unique,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	RoleID       int64     `bun:"role_id,notnull"`
	CompanyID    int64     `bun:"company_id,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Role    *roleModel    `bun:"rel:belongs-to,join:role_id=id"`
	Company *companyModel `bun:"rel:belongs-to,join:company_id=id"`
}

func (m *userModel) toUser() users.User {
	u := users.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		RoleID:       m.RoleID,
		CompanyID:    m.CompanyID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Role != nil && m.Role.ID != 0 {
		role := m.Role.toRole()
		u.Role = &role
	}
	if m.Company != nil && m.Company.ID != 0 {
		company := m.Company.toCompany()
		u.Company = &company
	}
	return u
}

type machineModel struct {
	bun.BaseModel `bun:"table:machines,alias:m"`

	ID         int64     `bun:"id,pk,autoincrement"`
	MemorySize int       `bun:"memory_size,notnull"`
	DiskSize   int       `bun:"disk_size,notnull"`
	CompanyID  *int64    `bun:"company_id"`
	AdminID    *int64    `bun:"admin_id"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Company *companyModel `bun:"rel:belongs-to,join:company_id=id"`
	Admin   *userModel    `bun:"rel:belongs-to,join:admin_id=id"`
}

func (m *machineModel) toMachine() machines.Machine {
	out := machines.Machine{
		ID:         m.ID,
		MemorySize: m.MemorySize,
		DiskSize:   m.DiskSize,
		CompanyID:  m.CompanyID,
		AdminID:    m.AdminID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.CompanyID != nil && m.Company != nil && m.Company.ID != 0 {
		company := m.Company.toCompany()
		out.Company = &company
	}
	if m.AdminID != nil && m.Admin != nil && m.Admin.ID != 0 {
		out.Admin = &machines.AdminSummary{ID: m.Admin.ID, Name: m.Admin.Name, Email: m.Admin.Email}
	}
	return out
}

type auditLogModel struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64          `bun:"id,pk,autoincrement"`
	ActorID    *int64         `bun:"actor_id"`
	Action     string         `bun:"action,notnull"`
	Entity     string         `bun:"entity,notnull"`
	EntityID   string         `bun:"entity_id,notnull"`
	Meta       map[string]any `bun:"meta,type:json"`
	OccurredAt time.Time      `bun:"occurred_at,nullzero,notnull,default:current_timestamp"`
}
