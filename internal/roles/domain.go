package roles

import "time"

// Role maps a role name to its permission set and active flag. Updates
// take effect for every holder on their next authorization check; the
// store never tracks who is logged in.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the role's stored set contains code.
func (r Role) HasPermission(code string) bool {
	for _, p := range r.Permissions {
		if p == code {
			return true
		}
	}
	return false
}
