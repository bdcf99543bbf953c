package groups

import "time"

// GroupStatus enumerates group lifecycle states.
type GroupStatus string

const (
	GroupActive   GroupStatus = "ACTIVE"
	GroupArchived GroupStatus = "ARCHIVED"
)

// Group is a class group owned by a single teacher. The active
// enrollment count must never exceed Capacity.
type Group struct {
	ID             int64
	Name           string
	OwnerTeacherID int64
	Capacity       int
	Status         GroupStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Enrollment ties a student to a group, unique per pair. Created on
// admission, removed on transfer or withdrawal.
type Enrollment struct {
	StudentID int64
	GroupID   int64
	CreatedAt time.Time
}

// CreateGroupInput for creating groups.
type CreateGroupInput struct {
	Name           string
	OwnerTeacherID int64
	Capacity       int
}

// UpdateGroupInput for updating group attributes.
type UpdateGroupInput struct {
	ID       int64
	Name     string
	Capacity int
	Status   GroupStatus
}
