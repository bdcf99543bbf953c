package groups

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/classward/classward/internal/authz"
	"github.com/classward/classward/internal/platform/httpx"
	"github.com/classward/classward/internal/shared"
)

// IDSetResolver yields the group id sets used to scope list endpoints.
type IDSetResolver interface {
	GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error)
	GroupIDsOfStudent(ctx context.Context, studentID int64) ([]int64, error)
}

// Handler exposes group and enrollment endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      *authz.Gate
	idSets    IDSetResolver
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, gate *authz.Gate, idSets IDSetResolver) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, idSets: idSets, validator: validator.New()}
}

type createGroupBody struct {
	Name           string `json:"name" validate:"required"`
	OwnerTeacherID int64  `json:"owner_teacher_id" validate:"required"`
	Capacity       int    `json:"capacity" validate:"required,gt=0"`
}

type updateGroupBody struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
	Status   string `json:"status" validate:"required,oneof=ACTIVE ARCHIVED"`
}

type enrollmentBody struct {
	StudentID int64 `json:"student_id" validate:"required"`
}

type groupResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	OwnerTeacherID int64  `json:"owner_teacher_id"`
	Capacity       int    `json:"capacity"`
	Occupancy      *int   `json:"occupancy,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// List returns the groups visible to the actor. Holders of the any-scope
// view code see everything; own-scope holders see the groups they own or
// belong to.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}

	decision, err := h.gate.Authorize(r.Context(), actor, []string{shared.PermGroupsViewAny}, authz.ModeAll, nil)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if decision.Allowed {
		all, err := h.service.List(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		h.respondGroups(w, all)
		return
	}

	if err := h.gate.Require(r.Context(), actor, []string{shared.PermGroupsViewOwn}, authz.ModeAll, nil); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ids, err := h.visibleGroupIDs(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	visible, err := h.service.ListByIDs(r.Context(), ids)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondGroups(w, visible)
}

// Get returns one group, subject to the scoped view check.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	id, err := groupID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	err = h.gate.Require(r.Context(), actor,
		[]string{shared.PermGroupsViewAny, shared.PermGroupsViewOwn},
		authz.ModeAny, &authz.ResourceRef{GroupID: id})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	group, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	occupancy, err := h.service.Occupancy(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := toGroupResponse(group)
	resp.Occupancy = &occupancy
	httpx.JSON(w, http.StatusOK, resp)
}

// Create makes a new group.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createGroupBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name, owner_teacher_id and a positive capacity are required")
		return
	}
	group, err := h.service.Create(r.Context(), CreateGroupInput{
		Name:           body.Name,
		OwnerTeacherID: body.OwnerTeacherID,
		Capacity:       body.Capacity,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGroupResponse(group))
}

// Update changes group attributes.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body updateGroupBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name, a positive capacity and status ACTIVE or ARCHIVED are required")
		return
	}
	group, err := h.service.Update(r.Context(), UpdateGroupInput{
		ID:       id,
		Name:     body.Name,
		Capacity: body.Capacity,
		Status:   GroupStatus(body.Status),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(group))
}

// Admit enrolls a student into the group.
func (h *Handler) Admit(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body enrollmentBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "student_id is required")
		return
	}
	enrollment, err := h.service.Admit(r.Context(), body.StudentID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, enrollment)
}

// Withdraw removes a student from the group.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil || studentID <= 0 {
		httpx.RespondError(w, shared.E(shared.KindValidation, "invalid student id"))
		return
	}
	if err := h.service.Withdraw(r.Context(), studentID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) visibleGroupIDs(ctx context.Context, actor shared.Actor) ([]int64, error) {
	switch actor.Role {
	case shared.RoleTeacher:
		return h.idSets.GroupIDsOwnedByTeacher(ctx, actor.UserID)
	case shared.RoleStudent:
		return h.idSets.GroupIDsOfStudent(ctx, actor.UserID)
	default:
		return nil, nil
	}
}

func (h *Handler) respondGroups(w http.ResponseWriter, list []Group) {
	out := make([]groupResponse, 0, len(list))
	for _, group := range list {
		out = append(out, toGroupResponse(group))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func groupID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.E(shared.KindValidation, "invalid group id")
	}
	return id, nil
}

func toGroupResponse(group Group) groupResponse {
	return groupResponse{
		ID:             group.ID,
		Name:           group.Name,
		OwnerTeacherID: group.OwnerTeacherID,
		Capacity:       group.Capacity,
		Status:         string(group.Status),
		CreatedAt:      group.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      group.UpdatedAt.Format(time.RFC3339),
	}
}
