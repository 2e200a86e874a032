package shared

// Role names seeded at startup.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// RoleNames lists every role in seeding order.
func RoleNames() []string {
	return []string{
		RoleSuperAdmin,
		RoleAdmin,
		RoleUser,
	}
}

// Principal describes the authenticated actor.
type Principal struct {
	UserID    int64  `json:"userId"`
	CompanyID int64  `json:"companyId"`
	Role      string `json:"role"`
}

// IsSuperAdmin reports whether the principal bypasses company scoping.
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}
