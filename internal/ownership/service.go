// Package ownership answers fine-grained authorization questions about
// the structural relationship between an actor and a group: teacher owns
// it, student is enrolled in it, or neither. Pure reads, no locking.
package ownership

import (
	"context"

	"github.com/classward/classward/internal/groups"
	"github.com/classward/classward/internal/shared"
)

// Store is the read surface the resolver needs from the groups module.
type Store interface {
	GetGroup(ctx context.Context, id int64) (groups.Group, error)
	EnrollmentExists(ctx context.Context, studentID, groupID int64) (bool, error)
	GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error)
	GroupIDsOfStudent(ctx context.Context, studentID int64) ([]int64, error)
}

// Resolver decides whether an actor's relationship to a group qualifies
// them for an action.
type Resolver struct {
	store Store
}

// NewResolver constructs a Resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// TeacherOwnsGroup reports whether the teacher owns the group.
func (r *Resolver) TeacherOwnsGroup(ctx context.Context, teacherID, groupID int64) (bool, error) {
	group, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return group.OwnerTeacherID == teacherID, nil
}

// StudentInGroup reports whether the student is enrolled in the group.
func (r *Resolver) StudentInGroup(ctx context.Context, studentID, groupID int64) (bool, error) {
	return r.store.EnrollmentExists(ctx, studentID, groupID)
}

// GroupIDsOwnedByTeacher returns the deduplicated id set of groups the
// teacher owns, for filtering list queries.
func (r *Resolver) GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error) {
	return r.store.GroupIDsOwnedByTeacher(ctx, teacherID)
}

// GroupIDsOfStudent returns the deduplicated id set of groups the
// student belongs to.
func (r *Resolver) GroupIDsOfStudent(ctx context.Context, studentID int64) ([]int64, error) {
	return r.store.GroupIDsOfStudent(ctx, studentID)
}

// EnsureTeacherOwnsGroup short-circuits with an ownership violation when
// the teacher is not the recorded owner.
func (r *Resolver) EnsureTeacherOwnsGroup(ctx context.Context, teacherID, groupID int64, action string) error {
	owns, err := r.TeacherOwnsGroup(ctx, teacherID, groupID)
	if err != nil {
		return err
	}
	if !owns {
		return shared.OwnershipDenied(action)
	}
	return nil
}

// EnsureStudentInGroup short-circuits with an ownership violation when
// the student is not enrolled.
func (r *Resolver) EnsureStudentInGroup(ctx context.Context, studentID, groupID int64, action string) error {
	enrolled, err := r.StudentInGroup(ctx, studentID, groupID)
	if err != nil {
		return err
	}
	if !enrolled {
		return shared.OwnershipDenied(action)
	}
	return nil
}

// EnsureCanAccessGroup dispatches on role: admins always pass, teachers
// must own the group, students must be enrolled, anything else is denied.
func (r *Resolver) EnsureCanAccessGroup(ctx context.Context, actor shared.Actor, groupID int64, action string) error {
	switch actor.Role {
	case shared.RoleAdmin:
		return nil
	case shared.RoleTeacher:
		return r.EnsureTeacherOwnsGroup(ctx, actor.UserID, groupID, action)
	case shared.RoleStudent:
		return r.EnsureStudentInGroup(ctx, actor.UserID, groupID, action)
	default:
		return shared.OwnershipDenied(action)
	}
}
