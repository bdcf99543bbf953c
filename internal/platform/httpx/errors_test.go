package httpx_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classward/classward/internal/platform/httpx"
	"github.com/classward/classward/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind   shared.Kind
		status int
	}{
		{shared.KindAuthenticationFailure, http.StatusUnauthorized},
		{shared.KindSessionInvalidated, http.StatusUnauthorized},
		{shared.KindAccountNotActive, http.StatusForbidden},
		{shared.KindPermissionDenied, http.StatusForbidden},
		{shared.KindOwnershipViolation, http.StatusForbidden},
		{shared.KindValidation, http.StatusBadRequest},
		{shared.KindConflict, http.StatusConflict},
		{shared.KindNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		httpx.RespondError(rec, shared.E(tc.kind, "detail"))
		require.Equal(t, tc.status, rec.Code)
	}
}

func TestRespondErrorUntaggedIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, errors.New("pool exhausted: host 10.0.0.4"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	// Internal details never reach the client.
	require.Empty(t, problem.Detail)
}

func TestRespondErrorCarriesPermissionContext(t *testing.T) {
	rec := httptest.NewRecorder()
	err := shared.E(shared.KindPermissionDenied, "required permissions not granted")
	err.MissingPermissions = []string{shared.PermUsersEdit}
	httpx.RespondError(rec, err)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, []string{shared.PermUsersEdit}, problem.MissingPermissions)
}
