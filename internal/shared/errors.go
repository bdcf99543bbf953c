package shared

import (
	"errors"
	"fmt"
)

// Kind classifies expected, caller-recoverable failures. The boundary
// layer maps kinds to transport statuses; domain code only deals in kinds.
type Kind int

const (
	// KindUnknown marks unexpected failures (store unreachable, bugs).
	KindUnknown Kind = iota
	// KindAuthenticationFailure indicates a bad or expired credential.
	KindAuthenticationFailure
	// KindSessionInvalidated indicates generation or permission drift; the
	// caller must re-authenticate, not retry.
	KindSessionInvalidated
	// KindAccountNotActive indicates the account status blocks access.
	KindAccountNotActive
	// KindPermissionDenied indicates a coarse permission check failed.
	KindPermissionDenied
	// KindOwnershipViolation indicates fine-grained scoping failed.
	KindOwnershipViolation
	// KindValidation indicates malformed or inconsistent input.
	KindValidation
	// KindConflict indicates a uniqueness or capacity constraint was hit.
	KindConflict
	// KindNotFound indicates the referenced record does not exist.
	KindNotFound
)

// Error is the tagged error carried across module boundaries.
type Error struct {
	Kind    Kind
	Message string

	// MissingPermissions lists the codes an all-mode check did not find,
	// or the attempted set for an any-mode denial.
	MissingPermissions []string
	// Action names the fine-grained action an ownership check refused.
	// Deliberately the only detail exposed for ownership denials.
	Action string
	// Status carries the account status blocking access.
	Status string
}

func (e *Error) Error() string {
	return e.Message
}

// E builds an Error with the given kind and message.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Ef builds an Error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, KindUnknown when untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// OwnershipDenied builds the ownership violation error for an action.
// Callers never learn which groups the actor does or doesn't own.
func OwnershipDenied(action string) *Error {
	return &Error{
		Kind:    KindOwnershipViolation,
		Message: fmt.Sprintf("not permitted to perform %s", action),
		Action:  action,
	}
}

// NotActive builds the account-status error with the status surfaced
// for operator messaging.
func NotActive(status string) *Error {
	return &Error{
		Kind:    KindAccountNotActive,
		Message: fmt.Sprintf("account is %s", status),
		Status:  status,
	}
}
