package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/classward/classward/internal/platform/httpx"
	"github.com/classward/classward/internal/shared"
)

// Handler exposes login/logout and the current-actor endpoint.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string        `json:"token"`
	Actor actorResponse `json:"actor"`
}

type actorResponse struct {
	UserID      int64    `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Login verifies email/password and returns a bearer credential.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	token, actor, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, Actor: toActorResponse(actor)})
}

// Logout revokes the presented credential.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, err := BearerToken(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), raw); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the validated actor for the presented credential.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
		return
	}
	httpx.JSON(w, http.StatusOK, toActorResponse(actor))
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", shared.E(shared.KindAuthenticationFailure, "authorization header missing")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", shared.E(shared.KindAuthenticationFailure, "malformed authorization header")
	}
	return raw, nil
}

func toActorResponse(actor shared.Actor) actorResponse {
	return actorResponse{UserID: actor.UserID, Role: actor.Role, Permissions: actor.Permissions}
}
