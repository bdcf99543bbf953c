package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/classward/classward/internal/identity"
	"github.com/classward/classward/internal/roles"
	"github.com/classward/classward/internal/shared"
)

// RoleStore resolves role names against the live role catalogue.
type RoleStore interface {
	Get(ctx context.Context, name string) (roles.Role, error)
}

// GenerationBumper invalidates outstanding credentials for a user.
type GenerationBumper interface {
	BumpGeneration(ctx context.Context, id int64) error
}

// Service handles account administration.
type Service struct {
	repo    RepositoryPort
	roles   RoleStore
	bumper  GenerationBumper
	hashGen func(password []byte, cost int) ([]byte, error)
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roleStore RoleStore, bumper GenerationBumper) *Service {
	return &Service{repo: repo, roles: roleStore, bumper: bumper, hashGen: bcrypt.GenerateFromPassword}
}

// CreateUserInput for registering a new account.
type CreateUserInput struct {
	Email    string
	Name     string
	Password string
	RoleName string
}

// List returns accounts matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]identity.User, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (identity.User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers an account in pending status with a hashed password.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (identity.User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if input.Email == "" || input.Name == "" {
		return identity.User{}, shared.E(shared.KindValidation, "email and name are required")
	}
	if len(input.Password) < 8 {
		return identity.User{}, shared.E(shared.KindValidation, "password must be at least 8 characters")
	}
	if err := s.ensureRole(ctx, input.RoleName); err != nil {
		return identity.User{}, err
	}
	hash, err := s.hashGen([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return identity.User{}, err
	}
	return s.repo.Create(ctx, CreateUserRecord{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hash),
		RoleName:     input.RoleName,
		Status:       identity.StatusPending,
	})
}

// AssignRole moves the account to a different role and bumps the
// credential generation so tokens minted under the old role die.
func (s *Service) AssignRole(ctx context.Context, id int64, roleName string) (identity.User, error) {
	if err := s.ensureRole(ctx, roleName); err != nil {
		return identity.User{}, err
	}
	if err := s.repo.SetRole(ctx, id, roleName); err != nil {
		return identity.User{}, err
	}
	if err := s.bumper.BumpGeneration(ctx, id); err != nil {
		return identity.User{}, err
	}
	return s.repo.Get(ctx, id)
}

// SetStatus flips the account status. No generation bump is needed:
// validation reads the live status on every request.
func (s *Service) SetStatus(ctx context.Context, id int64, status string) (identity.User, error) {
	switch status {
	case identity.StatusActive, identity.StatusPending, identity.StatusSuspended:
	default:
		return identity.User{}, shared.Ef(shared.KindValidation, "unknown account status %q", status)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return identity.User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes the account and bumps the generation so any
// outstanding credential is refused by the generation check as well.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	return s.bumper.BumpGeneration(ctx, id)
}

func (s *Service) ensureRole(ctx context.Context, roleName string) error {
	if strings.TrimSpace(roleName) == "" {
		return shared.E(shared.KindValidation, "role name required")
	}
	role, err := s.roles.Get(ctx, roleName)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.Ef(shared.KindValidation, "unknown role %q", roleName)
		}
		return err
	}
	if !role.IsActive {
		return shared.Ef(shared.KindValidation, "role %q is inactive", roleName)
	}
	return nil
}
