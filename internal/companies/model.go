package companies

import (
	"time"
)

// Company represents a tenant that owns users and machines.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AdminAccount is the first admin user created alongside a company.
type AdminAccount struct {
	Name         string
	Email        string
	PasswordHash string
	RoleID       int64
}
