package users

import (
	"time"

	"github.com/vminventory/vminventory/internal/companies"
	"github.com/vminventory/vminventory/internal/roles"
	"github.com/vminventory/vminventory/internal/shared"
)

// User is an account that belongs to exactly one company and holds one role.
// Role and Company are populated on reads that join them.
type User struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	PasswordHash string             `json:"-"`
	RoleID       int64              `json:"roleId"`
	CompanyID    int64              `json:"companyId"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Role         *roles.Role        `json:"role,omitempty"`
	Company      *companies.Company `json:"company,omitempty"`
}

// Principal returns the authorization identity of u.
func (u User) Principal() shared.Principal {
	p := shared.Principal{UserID: u.ID, CompanyID: u.CompanyID}
	if u.Role != nil {
		p.Role = u.Role.Name
	}
	return p
}

// CreateUserRequest is the payload for POST /users/create.
type CreateUserRequest struct {
	Name      string `json:"name" validate:"omitempty,max=200"`
	Email     string `json:"email" validate:"required,email,max=320"`
	Password  string `json:"password" validate:"required,max=72"`
	RoleID    int64  `json:"roleId" validate:"required,gt=0"`
	CompanyID int64  `json:"companyId" validate:"required,gt=0"`
}
