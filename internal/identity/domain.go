package identity

import "time"

// Account statuses. StatusActive is the single value that passes
// credential validation; every other status blocks access and is
// surfaced to the caller by name.
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// User is the persisted account record. Generation is a monotonically
// increasing counter; bumping it invalidates every credential issued
// before the bump.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	RoleName     string
	Status       string
	Generation   int64
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Claims is what a parsed credential asserts. Validation compares every
// field against live state; the claims themselves are never trusted
// downstream.
type Claims struct {
	UserID      int64
	Role        string
	Permissions []string
	Generation  int64
	TokenID     string
	ExpiresAt   time.Time
}
