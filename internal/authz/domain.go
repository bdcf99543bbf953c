package authz

// Mode selects how a set of required permission codes combines.
type Mode int

const (
	// ModeAll requires every code.
	ModeAll Mode = iota
	// ModeAny requires at least one code.
	ModeAny
)

// ResourceRef points the gate at the resource a scoped permission code
// must be checked against.
type ResourceRef struct {
	GroupID int64
}

// Decision is the gate's verdict. On denial it carries the missing codes
// (all-mode) or the attempted set (any-mode) so callers can produce
// actionable errors without leaking anything about other actors.
type Decision struct {
	Allowed   bool
	Mode      Mode
	Missing   []string
	Attempted []string
}
