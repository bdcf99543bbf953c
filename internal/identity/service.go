package identity

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/classward/classward/internal/roles"
	"github.com/classward/classward/internal/shared"
)

// RoleStore is the live role lookup the validator depends on.
type RoleStore interface {
	Get(ctx context.Context, name string) (roles.Role, error)
}

// Service validates credentials against live state and issues new ones.
type Service struct {
	repo     RepositoryPort
	roles    RoleStore
	tokens   *TokenService
	denylist Denylist
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo RepositoryPort, roleStore RoleStore, tokens *TokenService, denylist Denylist, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roleStore, tokens: tokens, denylist: denylist, logger: logger}
}

// Validate turns a raw bearer credential into a normalized Actor, or
// fails. The credential's claims are checked field by field against the
// live user and role records; downstream consumers only ever see the
// Actor built from live state.
func (s *Service) Validate(ctx context.Context, raw string) (shared.Actor, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return shared.Actor{}, err
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return shared.Actor{}, err
		}
		if revoked {
			return shared.Actor{}, shared.E(shared.KindSessionInvalidated, "credential has been revoked")
		}
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "unknown subject")
		}
		return shared.Actor{}, err
	}
	if user.IsDeleted {
		return shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "account no longer exists")
	}

	role, err := s.roles.Get(ctx, user.RoleName)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "role no longer exists")
		}
		return shared.Actor{}, err
	}
	if !role.IsActive {
		return shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "role is not active")
	}

	if claims.Generation != user.Generation {
		return shared.Actor{}, shared.E(shared.KindSessionInvalidated, "credential generation is stale")
	}

	// Unordered set comparison: any drift in either direction means the
	// credential was issued before a permission change and must die.
	if !samePermissionSet(claims.Permissions, role.Permissions) {
		return shared.Actor{}, shared.E(shared.KindSessionInvalidated, "permission snapshot is stale")
	}

	if user.Status != StatusActive {
		return shared.Actor{}, shared.NotActive(user.Status)
	}

	return shared.Actor{
		UserID:      user.ID,
		Role:        role.Name,
		Permissions: role.Permissions,
	}, nil
}

// Login checks email/password credentials and issues a token pair built
// from the role's live permission snapshot.
func (s *Service) Login(ctx context.Context, email, password string) (string, shared.Actor, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return "", shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "invalid credentials")
		}
		return "", shared.Actor{}, err
	}
	if user.IsDeleted {
		return "", shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "invalid credentials")
	}

	role, err := s.roles.Get(ctx, user.RoleName)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return "", shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "invalid credentials")
		}
		return "", shared.Actor{}, err
	}
	if !role.IsActive {
		return "", shared.Actor{}, shared.E(shared.KindAuthenticationFailure, "invalid credentials")
	}
	if user.Status != StatusActive {
		return "", shared.Actor{}, shared.NotActive(user.Status)
	}

	signed, _, err := s.tokens.Issue(user, role.Permissions)
	if err != nil {
		return "", shared.Actor{}, err
	}

	s.logger.Info("login", slog.Int64("user_id", user.ID), slog.String("role", role.Name))
	return signed, shared.Actor{UserID: user.ID, Role: role.Name, Permissions: role.Permissions}, nil
}

// Revoke denylists the credential's token id until its natural expiry.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt)
	if err := s.denylist.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return err
	}
	s.logger.Info("credential revoked", slog.Int64("user_id", claims.UserID))
	return nil
}

// BumpGeneration invalidates every outstanding credential for a user.
func (s *Service) BumpGeneration(ctx context.Context, userID int64) error {
	return s.repo.BumpGeneration(ctx, userID)
}

func samePermissionSet(claimed, live []string) bool {
	claimedSet := toSet(claimed)
	liveSet := toSet(live)
	if len(claimedSet) != len(liveSet) {
		return false
	}
	for p := range claimedSet {
		if _, ok := liveSet[p]; !ok {
			return false
		}
	}
	return true
}

func toSet(permissions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return set
}
