package shared

// Role names. The set is fixed; role records stay editable (permissions,
// active flag) but no new names are minted at runtime.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Group and enrollment permissions.
const (
	PermGroupsViewAny = "groups.view.any"
	PermGroupsViewOwn = "groups.view.own"
	PermGroupsManage  = "groups.manage"

	PermEnrollmentsViewAny = "enrollments.view.any"
	PermEnrollmentsViewOwn = "enrollments.view.own"
	PermEnrollmentsManage  = "enrollments.manage"
)

// Transfer workflow permissions.
const (
	PermTransfersCreate    = "transfers.create"
	PermTransfersReviewOwn = "transfers.review.own"
	PermTransfersReviewAny = "transfers.review.any"
	PermTransfersReassign  = "transfers.reassign"
)

// Platform administration permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"
	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"
	PermAuditView = "audit.view"
)

// CatalogEntry describes one permission code for grouping and audit.
// Advisory only: authorization decisions consult a role's stored set,
// never this catalog.
type CatalogEntry struct {
	Code        string
	Category    string
	Description string
}

// Catalog lists every known permission code grouped by category.
func Catalog() []CatalogEntry {
	return []CatalogEntry{
		{PermGroupsViewAny, "groups", "view any group"},
		{PermGroupsViewOwn, "groups", "view groups the actor owns or belongs to"},
		{PermGroupsManage, "groups", "create and update groups"},
		{PermEnrollmentsViewAny, "enrollments", "view any enrollment"},
		{PermEnrollmentsViewOwn, "enrollments", "view enrollments in owned groups"},
		{PermEnrollmentsManage, "enrollments", "admit and withdraw students"},
		{PermTransfersCreate, "transfers", "submit a group transfer request"},
		{PermTransfersReviewOwn, "transfers", "review transfers touching owned groups"},
		{PermTransfersReviewAny, "transfers", "override any transfer request"},
		{PermTransfersReassign, "transfers", "reassign a student directly"},
		{PermUsersView, "users", "list user accounts"},
		{PermUsersEdit, "users", "manage user accounts"},
		{PermRolesView, "roles", "view roles and their permissions"},
		{PermRolesEdit, "roles", "edit role permission sets"},
		{PermAuditView, "audit", "read audit timelines"},
	}
}

var ownershipScoped = map[string]struct{}{
	PermGroupsViewOwn:      {},
	PermEnrollmentsViewOwn: {},
	PermTransfersReviewOwn: {},
}

// OwnershipScoped reports whether a code grants access only to resources
// the actor owns or belongs to. Grants matched on such a code require an
// ownership check before they count.
func OwnershipScoped(code string) bool {
	_, ok := ownershipScoped[code]
	return ok
}
