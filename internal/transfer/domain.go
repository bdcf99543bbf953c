package transfer

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalState tracks one owning teacher's side of a request.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "PENDING"
	ApprovalApproved ApprovalState = "APPROVED"
	ApprovalRejected ApprovalState = "REJECTED"
)

// RequestStatus is the derived final status of a request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
	// StatusFailed marks a request whose approvals went through but whose
	// execution could not complete (the target filled up meanwhile).
	// Distinct from REJECTED: nobody said no, the room filled up.
	StatusFailed RequestStatus = "FAILED"
)

// Terminal reports whether no further review can touch the request.
func (s RequestStatus) Terminal() bool {
	return s != StatusPending
}

// Verdict is a reviewer's decision input.
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictReject  Verdict = "REJECT"
)

// Request is a proposed move of a student between two groups, subject to
// approval by both owning teachers or an administrative override. A
// student holds at most one PENDING request at any time.
type Request struct {
	ID             uuid.UUID
	StudentID      int64
	SourceGroupID  int64
	TargetGroupID  int64
	Reason         string
	SourceApproval ApprovalState
	TargetApproval ApprovalState
	Status         RequestStatus
	ResolvedBy     *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateRequestInput for submitting a transfer request.
type CreateRequestInput struct {
	StudentID     int64
	SourceGroupID int64
	TargetGroupID int64
	Reason        string
}

// ReassignInput for the administrative escape hatch that bypasses the
// request entity entirely.
type ReassignInput struct {
	AdminID     int64
	StudentID   int64
	FromGroupID int64
	ToGroupID   int64
}

// ListFilters narrows request listings.
type ListFilters struct {
	StudentID int64
	Status    RequestStatus
	GroupIDs  []int64
}
