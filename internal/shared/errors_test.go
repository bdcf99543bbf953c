package shared_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classward/classward/internal/shared"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	base := shared.E(shared.KindConflict, "group is at capacity")
	wrapped := fmt.Errorf("admit student: %w", base)

	require.Equal(t, shared.KindConflict, shared.KindOf(wrapped))
	require.True(t, shared.IsKind(wrapped, shared.KindConflict))
	require.False(t, shared.IsKind(wrapped, shared.KindNotFound))
}

func TestKindOfUntaggedIsUnknown(t *testing.T) {
	require.Equal(t, shared.KindUnknown, shared.KindOf(fmt.Errorf("boom")))
	require.Equal(t, shared.KindUnknown, shared.KindOf(nil))
}

func TestOwnershipDeniedShape(t *testing.T) {
	err := shared.OwnershipDenied("transfers.review.own")
	require.Equal(t, shared.KindOwnershipViolation, err.Kind)
	require.Equal(t, "transfers.review.own", err.Action)
	require.Equal(t, "not permitted to perform transfers.review.own", err.Error())
}

func TestNotActiveShape(t *testing.T) {
	err := shared.NotActive("suspended")
	require.Equal(t, shared.KindAccountNotActive, err.Kind)
	require.Equal(t, "suspended", err.Status)
	require.Equal(t, "account is suspended", err.Error())
}

func TestOwnershipScoped(t *testing.T) {
	require.True(t, shared.OwnershipScoped(shared.PermGroupsViewOwn))
	require.True(t, shared.OwnershipScoped(shared.PermTransfersReviewOwn))
	require.False(t, shared.OwnershipScoped(shared.PermGroupsViewAny))
	require.False(t, shared.OwnershipScoped(shared.PermTransfersReassign))
}
