package httpx

import (
	"errors"
	"net/http"

	"github.com/classward/classward/internal/shared"
)

// RespondError maps shared error kinds to RFC7807 responses. This is the
// only place kinds meet transport statuses; unexpected errors surface as
// opaque 500s without detail leakage.
func RespondError(w http.ResponseWriter, err error) {
	var tagged *shared.Error
	if !errors.As(err, &tagged) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	status, title := statusFor(tagged.Kind)
	JSON(w, status, ProblemDetail{
		Title:              title,
		Status:             status,
		Detail:             tagged.Message,
		MissingPermissions: tagged.MissingPermissions,
		Action:             tagged.Action,
		AccountStatus:      tagged.Status,
	})
}

func statusFor(kind shared.Kind) (int, string) {
	switch kind {
	case shared.KindAuthenticationFailure:
		return http.StatusUnauthorized, "Authentication Failed"
	case shared.KindSessionInvalidated:
		return http.StatusUnauthorized, "Session Invalidated"
	case shared.KindAccountNotActive:
		return http.StatusForbidden, "Account Not Active"
	case shared.KindPermissionDenied:
		return http.StatusForbidden, "Permission Denied"
	case shared.KindOwnershipViolation:
		return http.StatusForbidden, "Forbidden"
	case shared.KindValidation:
		return http.StatusBadRequest, "Validation Failed"
	case shared.KindConflict:
		return http.StatusConflict, "Conflict"
	case shared.KindNotFound:
		return http.StatusNotFound, "Not Found"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
