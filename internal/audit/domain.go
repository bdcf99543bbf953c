package audit

import "time"

// Event is a single audit record. Every approval, override, rejection
// and reassignment emits one; recording is fire-and-forget and never
// fails the transition that produced it.
type Event struct {
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Actions emitted by the transfer workflow.
const (
	ActionSubmit   = "SUBMIT"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionOverride = "OVERRIDE"
	ActionReassign = "REASSIGN"
	ActionFail     = "FAIL"
)

// Entities referenced by audit rows.
const (
	EntityTransferRequest = "transfer_request"
	EntityEnrollment      = "enrollment"
)
