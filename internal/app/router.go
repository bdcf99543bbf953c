package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/classward/classward/internal/audit"
	"github.com/classward/classward/internal/authz"
	"github.com/classward/classward/internal/groups"
	"github.com/classward/classward/internal/identity"
	"github.com/classward/classward/internal/roles"
	"github.com/classward/classward/internal/shared"
	"github.com/classward/classward/internal/transfer"
	"github.com/classward/classward/internal/users"
	"github.com/classward/classward/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authz           authz.Middleware
	IdentityHandler *identity.Handler
	RolesHandler    *roles.Handler
	UsersHandler    *users.Handler
	GroupsHandler   *groups.Handler
	TransferHandler *transfer.Handler
	AuditHandler    *audit.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with Classward defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/auth/login", params.IdentityHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(params.Authz.Authenticate())

		r.Post("/auth/logout", params.IdentityHandler.Logout)
		r.Get("/auth/me", params.IdentityHandler.Me)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", params.GroupsHandler.List)
			r.Get("/{groupID}", params.GroupsHandler.Get)
			r.With(params.Authz.RequireAll(shared.PermGroupsManage)).
				Post("/", params.GroupsHandler.Create)
			r.With(params.Authz.RequireAll(shared.PermGroupsManage)).
				Put("/{groupID}", params.GroupsHandler.Update)
			r.With(params.Authz.RequireAll(shared.PermEnrollmentsManage)).
				Post("/{groupID}/enrollments", params.GroupsHandler.Admit)
			r.With(params.Authz.RequireAll(shared.PermEnrollmentsManage)).
				Delete("/{groupID}/enrollments/{studentID}", params.GroupsHandler.Withdraw)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.With(params.Authz.RequireAll(shared.PermTransfersCreate)).
				Post("/", params.TransferHandler.Create)
			r.With(params.Authz.RequireAny(
				shared.PermTransfersCreate,
				shared.PermTransfersReviewOwn,
				shared.PermTransfersReviewAny)).
				Get("/", params.TransferHandler.List)
			r.With(params.Authz.RequireAny(
				shared.PermTransfersCreate,
				shared.PermTransfersReviewOwn,
				shared.PermTransfersReviewAny)).
				Get("/{requestID}", params.TransferHandler.Get)
			r.With(params.Authz.RequireAll(shared.PermTransfersReviewOwn)).
				Post("/{requestID}/review", params.TransferHandler.Review)
			r.With(params.Authz.RequireAll(shared.PermTransfersReviewAny)).
				Post("/{requestID}/override", params.TransferHandler.Override)
			r.With(params.Authz.RequireAll(shared.PermTransfersReassign)).
				Post("/reassignments", params.TransferHandler.Reassign)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(params.Authz.RequireAll(shared.PermUsersView)).
				Get("/", params.UsersHandler.List)
			r.With(params.Authz.RequireAll(shared.PermUsersView)).
				Get("/{userID}", params.UsersHandler.Get)
			r.With(params.Authz.RequireAll(shared.PermUsersEdit)).
				Post("/", params.UsersHandler.Create)
			r.With(params.Authz.RequireAll(shared.PermUsersEdit)).
				Put("/{userID}/role", params.UsersHandler.AssignRole)
			r.With(params.Authz.RequireAll(shared.PermUsersEdit)).
				Put("/{userID}/status", params.UsersHandler.SetStatus)
			r.With(params.Authz.RequireAll(shared.PermUsersEdit)).
				Delete("/{userID}", params.UsersHandler.Delete)
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(params.Authz.RequireAll(shared.PermRolesView)).
				Get("/", params.RolesHandler.List)
			r.With(params.Authz.RequireAll(shared.PermRolesView)).
				Get("/catalog", params.RolesHandler.Catalog)
			r.With(params.Authz.RequireAll(shared.PermRolesView)).
				Get("/{name}", params.RolesHandler.Get)
			r.With(params.Authz.RequireAll(shared.PermRolesEdit)).
				Put("/{name}/permissions", params.RolesHandler.SetPermissions)
		})

		r.With(params.Authz.RequireAll(shared.PermAuditView)).
			Get("/audit", params.AuditHandler.Timeline)

		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
