package roles

import (
	"context"
	"sort"
	"strings"

	"github.com/classward/classward/internal/shared"
)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get fetches a role by name.
func (s *Service) Get(ctx context.Context, name string) (Role, error) {
	return s.repo.Get(ctx, strings.TrimSpace(name))
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// SetPermissions normalizes and replaces a role's permission set. The
// update affects every holder of the role on their next check.
func (s *Service) SetPermissions(ctx context.Context, name string, permissions []string) (Role, error) {
	normalized := NormalizePermissions(permissions)
	if len(normalized) == 0 {
		return Role{}, shared.E(shared.KindValidation, "at least one permission code required")
	}
	return s.repo.SetPermissions(ctx, strings.TrimSpace(name), normalized)
}

// HasActivePermission reports whether an active role grants code.
// Inactive roles grant nothing.
func (s *Service) HasActivePermission(role Role, code string) bool {
	return role.IsActive && role.HasPermission(code)
}

// NormalizePermissions lowercases, trims, deduplicates and sorts codes.
func NormalizePermissions(permissions []string) []string {
	unique := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	sort.Strings(normalized)
	return normalized
}
