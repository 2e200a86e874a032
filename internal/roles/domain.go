package roles

import "time"

// Role is a named permission tier. Roles are seeded, never edited.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
