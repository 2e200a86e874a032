package machines

import (
	"time"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/shared"
)

// Machine is a virtual machine record. A machine starts unassigned and
// gains a company and an administering user through assignment.
type Machine struct {
	ID         int64              `json:"id"`
	MemorySize int                `json:"memorySize"`
	DiskSize   int                `json:"diskSize"`
	CompanyID  *int64             `json:"companyId"`
	AdminID    *int64             `json:"adminId"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Company    *companies.Company `json:"company"`
	Admin      *AdminSummary      `json:"admin"`
}

// Assigned reports whether the machine has left the unassigned state.
func (m Machine) Assigned() bool {
	return m.CompanyID != nil || m.AdminID != nil
}

// AdminSummary is the public projection of a machine's admin user.
type AdminSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ownership is the pair of links an assignment writes.
type Ownership struct {
	CompanyID *int64
	AdminID   *int64
}

// CreateMachineRequest is the payload for POST /machines/create. Sizes are
// in megabytes (memory) and gigabytes (disk) and must fit the INTEGER
// columns that store them.
type CreateMachineRequest struct {
	MemorySize int `json:"memorySize" validate:"required,gt=0,lte=2147483647"`
	DiskSize   int `json:"diskSize" validate:"required,gt=0,lte=2147483647"`
}

// AssignRequest is the payload for PATCH /machines/{id}/assign. Absent
// fields leave the current link untouched.
type AssignRequest struct {
	CompanyID shared.Optional[int64] `json:"companyId"`
	AdminID   shared.Optional[int64] `json:"adminId"`
}

// Empty reports whether the request changes nothing.
func (r AssignRequest) Empty() bool {
	return !r.CompanyID.Set && !r.AdminID.Set
}
