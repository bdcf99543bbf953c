package groups

import (
	"context"
	"strings"

	"github.com/classward/classward/internal/shared"
)

// Service handles group and enrollment business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get fetches a group by id.
func (s *Service) Get(ctx context.Context, id int64) (Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// List returns all groups.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// ListByIDs returns the groups matching the given id set.
func (s *Service) ListByIDs(ctx context.Context, ids []int64) ([]Group, error) {
	return s.repo.ListGroupsByIDs(ctx, ids)
}

// Create validates and inserts a new group.
func (s *Service) Create(ctx context.Context, input CreateGroupInput) (Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Group{}, shared.E(shared.KindValidation, "group name required")
	}
	if input.Capacity <= 0 {
		return Group{}, shared.E(shared.KindValidation, "group capacity must be positive")
	}
	if input.OwnerTeacherID == 0 {
		return Group{}, shared.E(shared.KindValidation, "owning teacher required")
	}
	return s.repo.CreateGroup(ctx, input)
}

// Update changes group attributes. Capacity may not drop below the
// current enrollment count.
func (s *Service) Update(ctx context.Context, input UpdateGroupInput) (Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Group{}, shared.E(shared.KindValidation, "group name required")
	}
	if input.Capacity <= 0 {
		return Group{}, shared.E(shared.KindValidation, "group capacity must be positive")
	}
	current, err := s.repo.CountEnrollments(ctx, input.ID)
	if err != nil {
		return Group{}, err
	}
	if input.Capacity < current {
		return Group{}, shared.Ef(shared.KindValidation,
			"capacity %d is below current enrollment %d", input.Capacity, current)
	}
	return s.repo.UpdateGroup(ctx, input)
}

// Admit enrolls a student into a group, capacity permitting.
func (s *Service) Admit(ctx context.Context, studentID, groupID int64) (Enrollment, error) {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return Enrollment{}, err
	}
	if err := s.repo.InsertEnrollment(ctx, studentID, groupID); err != nil {
		return Enrollment{}, err
	}
	return Enrollment{StudentID: studentID, GroupID: groupID}, nil
}

// Withdraw removes a student from a group.
func (s *Service) Withdraw(ctx context.Context, studentID, groupID int64) error {
	return s.repo.RemoveEnrollment(ctx, studentID, groupID)
}

// Occupancy returns the current enrollment count for a group.
func (s *Service) Occupancy(ctx context.Context, groupID int64) (int, error) {
	return s.repo.CountEnrollments(ctx, groupID)
}
