package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/classward/classward/internal/platform/httpx"
	"github.com/classward/classward/internal/shared"
)

// CredentialValidator turns a raw bearer credential into an Actor.
type CredentialValidator interface {
	Validate(ctx context.Context, raw string) (shared.Actor, error)
}

// Middleware wires authentication and authorization helpers for HTTP
// handlers.
type Middleware struct {
	Validator CredentialValidator
	Gate      *Gate
	Logger    *slog.Logger
}

// Authenticate validates the bearer credential and stores the resulting
// actor in the request context.
func (m Middleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			actor, err := m.Validator.Validate(r.Context(), raw)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireAny ensures the actor holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, ModeAny)
}

// RequireAll ensures the actor holds all of the permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, ModeAll)
}

func (m Middleware) require(perms []string, mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.E(shared.KindAuthenticationFailure, "authentication required"))
				return
			}
			// Coarse check only; handlers run resource-scoped checks
			// themselves once they know which resource is addressed.
			if err := m.Gate.Require(r.Context(), actor, perms, mode, nil); err != nil {
				if m.Logger != nil && !shared.IsKind(err, shared.KindPermissionDenied) {
					m.Logger.Error("authorization gate", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", shared.E(shared.KindAuthenticationFailure, "authorization header missing")
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", shared.E(shared.KindAuthenticationFailure, "malformed authorization header")
	}
	return header[len(prefix):], nil
}
