package transfer

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/classward/classward/internal/audit"
	"github.com/classward/classward/internal/groups"
	"github.com/classward/classward/internal/shared"
)

// GroupReader is the slice of the groups service the workflow needs.
type GroupReader interface {
	Get(ctx context.Context, id int64) (groups.Group, error)
	Occupancy(ctx context.Context, groupID int64) (int, error)
}

// OwnershipResolver answers structural questions about actors and groups.
type OwnershipResolver interface {
	TeacherOwnsGroup(ctx context.Context, teacherID, groupID int64) (bool, error)
	EnsureStudentInGroup(ctx context.Context, studentID, groupID int64, action string) error
	GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error)
}

// Auditor records workflow events. Implementations must never fail the
// transition they are recording.
type Auditor interface {
	Record(ctx context.Context, event audit.Event)
}

// Notifier tells the student their request reached a terminal status.
// Fire-and-forget, same contract as Auditor.
type Notifier interface {
	TransferResolved(ctx context.Context, requestID string, studentID int64, status string)
}

// Service drives the transfer request state machine.
type Service struct {
	repo      Repository
	groups    GroupReader
	ownership OwnershipResolver
	auditor   Auditor
	notifier  Notifier
	logger    *slog.Logger
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo Repository, gr GroupReader, or OwnershipResolver, auditor Auditor, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, groups: gr, ownership: or, auditor: auditor, notifier: notifier, logger: logger}
}

func (s *Service) notifyResolved(ctx context.Context, req Request) {
	if s.notifier == nil || !req.Status.Terminal() {
		return
	}
	s.notifier.TransferResolved(ctx, req.ID.String(), req.StudentID, string(req.Status))
}

// Create submits a new transfer request on behalf of the student. The
// capacity check here is advisory only; the binding check happens inside
// the execution transaction.
func (s *Service) Create(ctx context.Context, input CreateRequestInput) (Request, error) {
	if input.SourceGroupID == input.TargetGroupID {
		return Request{}, shared.E(shared.KindValidation, "source and target group must differ")
	}
	target, err := s.groups.Get(ctx, input.TargetGroupID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return Request{}, shared.E(shared.KindValidation, "target group does not exist")
		}
		return Request{}, err
	}
	if target.Status != groups.GroupActive {
		return Request{}, shared.E(shared.KindValidation, "target group is not active")
	}
	if err := s.ownership.EnsureStudentInGroup(ctx, input.StudentID, input.SourceGroupID, "transfer.submit"); err != nil {
		if shared.IsKind(err, shared.KindOwnershipViolation) {
			return Request{}, shared.E(shared.KindValidation, "student is not enrolled in the source group")
		}
		return Request{}, err
	}
	occupancy, err := s.groups.Occupancy(ctx, input.TargetGroupID)
	if err != nil {
		return Request{}, err
	}
	if occupancy >= target.Capacity {
		return Request{}, shared.E(shared.KindConflict, "target group is at capacity")
	}

	req := Request{
		ID:            uuid.New(),
		StudentID:     input.StudentID,
		SourceGroupID: input.SourceGroupID,
		TargetGroupID: input.TargetGroupID,
		Reason:        input.Reason,
	}
	created, err := s.repo.CreatePending(ctx, req)
	if err != nil {
		return Request{}, err
	}

	s.auditor.Record(ctx, audit.Event{
		ActorID:  input.StudentID,
		Action:   audit.ActionSubmit,
		Entity:   audit.EntityTransferRequest,
		EntityID: created.ID.String(),
		Meta: map[string]any{
			"source_group_id": input.SourceGroupID,
			"target_group_id": input.TargetGroupID,
		},
	})
	return created, nil
}

// Get returns a single request, scoped to what the actor may see: admins
// see everything, teachers see requests touching a group they own,
// students see their own requests.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (Request, error) {
	req, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	switch actor.Role {
	case shared.RoleAdmin:
		return req, nil
	case shared.RoleTeacher:
		for _, groupID := range []int64{req.SourceGroupID, req.TargetGroupID} {
			owns, err := s.ownership.TeacherOwnsGroup(ctx, actor.UserID, groupID)
			if err != nil {
				return Request{}, err
			}
			if owns {
				return req, nil
			}
		}
	case shared.RoleStudent:
		if req.StudentID == actor.UserID {
			return req, nil
		}
	}
	// Not-found rather than forbidden: existence of other students'
	// requests is not disclosed.
	return Request{}, shared.E(shared.KindNotFound, "transfer request not found")
}

// List returns requests visible to the actor, optionally filtered.
func (s *Service) List(ctx context.Context, actor shared.Actor, filters ListFilters) ([]Request, error) {
	switch actor.Role {
	case shared.RoleAdmin:
		return s.repo.ListRequests(ctx, filters)
	case shared.RoleTeacher:
		owned, err := s.ownership.GroupIDsOwnedByTeacher(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if len(owned) == 0 {
			return []Request{}, nil
		}
		filters.GroupIDs = owned
		return s.repo.ListRequests(ctx, filters)
	case shared.RoleStudent:
		filters.StudentID = actor.UserID
		return s.repo.ListRequests(ctx, filters)
	default:
		return []Request{}, nil
	}
}

// ReviewAsOwner applies a teacher's verdict. The teacher's verdict lands
// on every side they own; a single rejection finalises the request, and
// once both sides are approved the move executes in the same transaction.
func (s *Service) ReviewAsOwner(ctx context.Context, reviewerID int64, requestID uuid.UUID, verdict Verdict) (Request, error) {
	if verdict != VerdictApprove && verdict != VerdictReject {
		return Request{}, shared.E(shared.KindValidation, "verdict must be APPROVE or REJECT")
	}

	var result Request
	var failed Request
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return shared.Ef(shared.KindConflict, "transfer request is already %s", req.Status)
		}

		ownsSource, err := s.ownership.TeacherOwnsGroup(ctx, reviewerID, req.SourceGroupID)
		if err != nil {
			return err
		}
		ownsTarget, err := s.ownership.TeacherOwnsGroup(ctx, reviewerID, req.TargetGroupID)
		if err != nil {
			return err
		}
		if !ownsSource && !ownsTarget {
			return shared.OwnershipDenied("transfer.review")
		}

		state := ApprovalApproved
		if verdict == VerdictReject {
			state = ApprovalRejected
		}
		if ownsSource {
			req.SourceApproval = state
		}
		if ownsTarget {
			req.TargetApproval = state
		}
		if err := tx.SetApprovals(ctx, req.ID, req.SourceApproval, req.TargetApproval); err != nil {
			return err
		}

		if verdict == VerdictReject {
			req.Status = StatusRejected
			if err := tx.SetStatus(ctx, req.ID, StatusRejected, nil); err != nil {
				return err
			}
			result = req
			return nil
		}

		if req.SourceApproval != ApprovalApproved || req.TargetApproval != ApprovalApproved {
			// Waiting for the other side.
			result = req
			return nil
		}

		if err := tx.MoveEnrollment(ctx, req.StudentID, req.SourceGroupID, req.TargetGroupID); err != nil {
			if shared.IsKind(err, shared.KindConflict) {
				failed = req
			}
			return err
		}
		req.Status = StatusApproved
		if err := tx.SetStatus(ctx, req.ID, StatusApproved, nil); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		if failed.ID != uuid.Nil {
			return s.markFailed(ctx, reviewerID, failed, err)
		}
		return Request{}, err
	}

	s.recordReview(ctx, reviewerID, result, verdict)
	s.notifyResolved(ctx, result)
	return result, nil
}

// ReviewAsAdmin finalises a request unconditionally. The per-side
// approval fields are left untouched so the record shows which teachers
// had and had not answered when the override landed. An approving
// override still fails hard when the target is full.
func (s *Service) ReviewAsAdmin(ctx context.Context, adminID int64, requestID uuid.UUID, verdict Verdict) (Request, error) {
	if verdict != VerdictApprove && verdict != VerdictReject {
		return Request{}, shared.E(shared.KindValidation, "verdict must be APPROVE or REJECT")
	}

	var result Request
	var failed Request
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return shared.Ef(shared.KindConflict, "transfer request is already %s", req.Status)
		}

		if verdict == VerdictReject {
			req.Status = StatusRejected
			req.ResolvedBy = &adminID
			if err := tx.SetStatus(ctx, req.ID, StatusRejected, &adminID); err != nil {
				return err
			}
			result = req
			return nil
		}

		req.ResolvedBy = &adminID
		if err := tx.MoveEnrollment(ctx, req.StudentID, req.SourceGroupID, req.TargetGroupID); err != nil {
			if shared.IsKind(err, shared.KindConflict) {
				failed = req
			}
			return err
		}
		req.Status = StatusApproved
		if err := tx.SetStatus(ctx, req.ID, StatusApproved, &adminID); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		if failed.ID != uuid.Nil {
			return s.markFailed(ctx, adminID, failed, err)
		}
		return Request{}, err
	}

	s.auditor.Record(ctx, audit.Event{
		ActorID:  adminID,
		Action:   audit.ActionOverride,
		Entity:   audit.EntityTransferRequest,
		EntityID: result.ID.String(),
		Meta:     map[string]any{"verdict": string(verdict), "status": string(result.Status)},
	})
	s.notifyResolved(ctx, result)
	return result, nil
}

// markFailed records the FAILED terminal status in its own transaction
// after the execution transaction rolled back. The approvals set inside
// the rolled-back transaction are re-applied so the record reflects the
// decisions that were actually made.
func (s *Service) markFailed(ctx context.Context, actorID int64, req Request, cause error) (Request, error) {
	txErr := s.repo.WithTx(ctx, func(tx TxRepository) error {
		if err := tx.SetApprovals(ctx, req.ID, req.SourceApproval, req.TargetApproval); err != nil {
			return err
		}
		return tx.SetStatus(ctx, req.ID, StatusFailed, req.ResolvedBy)
	})
	if txErr != nil {
		s.logger.Error("mark transfer failed",
			slog.String("request_id", req.ID.String()),
			slog.Any("error", txErr))
	}
	req.Status = StatusFailed

	s.auditor.Record(ctx, audit.Event{
		ActorID:  actorID,
		Action:   audit.ActionFail,
		Entity:   audit.EntityTransferRequest,
		EntityID: req.ID.String(),
		Meta:     map[string]any{"cause": cause.Error()},
	})
	s.notifyResolved(ctx, req)
	return req, shared.E(shared.KindConflict, "transfer could not be completed: "+cause.Error())
}

func (s *Service) recordReview(ctx context.Context, reviewerID int64, req Request, verdict Verdict) {
	action := audit.ActionApprove
	if verdict == VerdictReject {
		action = audit.ActionReject
	}
	s.auditor.Record(ctx, audit.Event{
		ActorID:  reviewerID,
		Action:   action,
		Entity:   audit.EntityTransferRequest,
		EntityID: req.ID.String(),
		Meta:     map[string]any{"status": string(req.Status)},
	})
}

// DirectReassign moves a student between groups immediately, bypassing
// the request workflow. Capacity is still enforced atomically.
func (s *Service) DirectReassign(ctx context.Context, input ReassignInput) error {
	if input.FromGroupID == input.ToGroupID {
		return shared.E(shared.KindValidation, "source and target group must differ")
	}
	if _, err := s.groups.Get(ctx, input.ToGroupID); err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.E(shared.KindValidation, "target group does not exist")
		}
		return err
	}
	err := s.repo.WithTx(ctx, func(tx TxRepository) error {
		return tx.MoveEnrollment(ctx, input.StudentID, input.FromGroupID, input.ToGroupID)
	})
	if err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Event{
		ActorID:  input.AdminID,
		Action:   audit.ActionReassign,
		Entity:   audit.EntityEnrollment,
		EntityID: strconv.FormatInt(input.StudentID, 10),
		Meta: map[string]any{
			"student_id":    input.StudentID,
			"from_group_id": input.FromGroupID,
			"to_group_id":   input.ToGroupID,
		},
	})
	return nil
}
