package transfer

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/classward/classward/internal/platform/httpx"
	"github.com/classward/classward/internal/shared"
)

// Handler exposes the transfer workflow over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type createRequestBody struct {
	SourceGroupID int64  `json:"source_group_id" validate:"required"`
	TargetGroupID int64  `json:"target_group_id" validate:"required"`
	Reason        string `json:"reason" validate:"max=500"`
}

type reviewBody struct {
	Verdict string `json:"verdict" validate:"required,oneof=APPROVE REJECT"`
}

type reassignBody struct {
	StudentID   int64 `json:"student_id" validate:"required"`
	FromGroupID int64 `json:"from_group_id" validate:"required"`
	ToGroupID   int64 `json:"to_group_id" validate:"required"`
}

type requestResponse struct {
	ID             string `json:"id"`
	StudentID      int64  `json:"student_id"`
	SourceGroupID  int64  `json:"source_group_id"`
	TargetGroupID  int64  `json:"target_group_id"`
	Reason         string `json:"reason,omitempty"`
	SourceApproval string `json:"source_approval"`
	TargetApproval string `json:"target_approval"`
	Status         string `json:"status"`
	ResolvedBy     *int64 `json:"resolved_by,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Create submits a transfer request for the authenticated student.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	var body createRequestBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_group_id and target_group_id are required")
		return
	}

	created, err := h.service.Create(r.Context(), CreateRequestInput{
		StudentID:     actor.UserID,
		SourceGroupID: body.SourceGroupID,
		TargetGroupID: body.TargetGroupID,
		Reason:        body.Reason,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(created))
}

// List returns requests visible to the actor. Filters: status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	filters := ListFilters{}
	if status := r.URL.Query().Get("status"); status != "" {
		filters.Status = RequestStatus(status)
	}
	requests, err := h.service.List(r.Context(), actor, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Get returns a single request, subject to visibility rules.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(req))
}

// Review applies a teacher's verdict to the sides they own.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body reviewBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "verdict must be APPROVE or REJECT")
		return
	}

	req, err := h.service.ReviewAsOwner(r.Context(), actor.UserID, id, Verdict(body.Verdict))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(req))
}

// Override finalises a request with administrative authority.
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	id, err := requestID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var body reviewBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "verdict must be APPROVE or REJECT")
		return
	}

	req, err := h.service.ReviewAsAdmin(r.Context(), actor.UserID, id, Verdict(body.Verdict))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(req))
}

// Reassign moves a student directly, no request involved.
func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	var body reassignBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "student_id, from_group_id and to_group_id are required")
		return
	}

	err := h.service.DirectReassign(r.Context(), ReassignInput{
		AdminID:     actor.UserID,
		StudentID:   body.StudentID,
		FromGroupID: body.FromGroupID,
		ToGroupID:   body.ToGroupID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		return uuid.Nil, shared.E(shared.KindValidation, "invalid request id")
	}
	return id, nil
}

func toRequestResponse(req Request) requestResponse {
	return requestResponse{
		ID:             req.ID.String(),
		StudentID:      req.StudentID,
		SourceGroupID:  req.SourceGroupID,
		TargetGroupID:  req.TargetGroupID,
		Reason:         req.Reason,
		SourceApproval: string(req.SourceApproval),
		TargetApproval: string(req.TargetApproval),
		Status:         string(req.Status),
		ResolvedBy:     req.ResolvedBy,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}
}
