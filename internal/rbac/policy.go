package rbac

import (
	"github.com/vminventory/vminventory/internal/shared"
)

// CanCreateMachine allows admins and super admins.
func CanCreateMachine(p shared.Principal) error {
	if !isManager(p) {
		return forbid("only admins may create machines")
	}
	return nil
}

// AssignCheck describes an assignment as seen by the policy. Nil pointers
// mean "no company" for the current owner and "unchanged" for the targets.
type AssignCheck struct {
	CurrentCompanyID *int64
	TargetCompanyID  *int64
	AdminCompanyID   *int64
}

// CanAssignMachine allows super admins everywhere. Admins may only touch
// machines that are unassigned or already owned by their company, and may
// only hand them to their own company and its users.
func CanAssignMachine(p shared.Principal, check AssignCheck) error {
	if !isManager(p) {
		return forbid("only admins may assign machines")
	}
	if p.IsSuperAdmin() {
		return nil
	}
	if check.CurrentCompanyID != nil && *check.CurrentCompanyID != p.CompanyID {
		return forbid("machine belongs to another company")
	}
	if check.TargetCompanyID != nil && *check.TargetCompanyID != p.CompanyID {
		return forbid("admins may only assign machines to their own company")
	}
	if check.AdminCompanyID != nil && *check.AdminCompanyID != p.CompanyID {
		return forbid("admins may only delegate machines to users of their own company")
	}
	return nil
}

// CanCreateUserIn decides the company half of user creation. It needs no
// lookups, so callers run it before resolving referenced ids.
func CanCreateUserIn(p shared.Principal, companyID int64) error {
	switch p.Role {
	case shared.RoleSuperAdmin:
		return nil
	case shared.RoleAdmin:
		if companyID != p.CompanyID {
			return forbid("admins may only create users in their own company")
		}
		return nil
	default:
		return forbid("only admins may create users")
	}
}

// CanCreateUser allows super admins to create any user. Admins may create
// admin or user accounts inside their own company.
func CanCreateUser(p shared.Principal, roleName string, companyID int64) error {
	if err := CanCreateUserIn(p, companyID); err != nil {
		return err
	}
	if p.Role == shared.RoleAdmin && roleName == shared.RoleSuperAdmin {
		return forbid("admins may not grant super_admin")
	}
	return nil
}

// CanReadAudit restricts the audit timeline to super admins.
func CanReadAudit(p shared.Principal) error {
	if !p.IsSuperAdmin() {
		return forbid("only super admins may read the audit timeline")
	}
	return nil
}
