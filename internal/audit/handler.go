package audit

import (
	"log/slog"
	"net/http"

	"github.com/classward/classward/internal/platform/httpx"
)

// Handler exposes audit timelines to operators.
type Handler struct {
	logger *slog.Logger
	writer *Writer
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, writer *Writer) *Handler {
	return &Handler{logger: logger, writer: writer}
}

// Timeline returns the event history for one entity.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	entityID := r.URL.Query().Get("entity_id")
	if entity == "" || entityID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entity and entity_id are required")
		return
	}
	events, err := h.writer.List(r.Context(), entity, entityID)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}
