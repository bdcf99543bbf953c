// Package users is the administrative account surface: listing accounts,
// creating them, assigning roles and flipping statuses. Credential
// validation lives in identity; this package only mutates the records it
// validates against.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classward/classward/internal/identity"
	"github.com/classward/classward/internal/shared"
)

// RepositoryPort defines persistence operations for account admin.
type RepositoryPort interface {
	List(ctx context.Context, filters ListFilters) ([]identity.User, error)
	Get(ctx context.Context, id int64) (identity.User, error)
	Create(ctx context.Context, input CreateUserRecord) (identity.User, error)
	SetRole(ctx context.Context, id int64, roleName string) error
	SetStatus(ctx context.Context, id int64, status string) error
	SoftDelete(ctx context.Context, id int64) error
}

// CreateUserRecord is the persisted shape of a new account.
type CreateUserRecord struct {
	Email        string
	Name         string
	PasswordHash string
	RoleName     string
	Status       string
}

// ListFilters narrows account listings.
type ListFilters struct {
	RoleName string
	Status   string
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, password_hash, role_name, status, generation, is_deleted, created_at, updated_at`

func (r *Repository) List(ctx context.Context, filters ListFilters) ([]identity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_deleted = FALSE`
	args := make([]any, 0, 2)
	if filters.RoleName != "" {
		args = append(args, filters.RoleName)
		query += fmt.Sprintf(" AND role_name = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (identity.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND is_deleted = FALSE`, id)
	return scanUser(row)
}

func (r *Repository) Create(ctx context.Context, input CreateUserRecord) (identity.User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role_name, status, generation, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, FALSE, NOW(), NOW())
RETURNING `+userColumns,
		input.Email, input.Name, input.PasswordHash, input.RoleName, input.Status)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.User{}, shared.E(shared.KindConflict, "email already registered")
		}
		return identity.User{}, err
	}
	return user, nil
}

func (r *Repository) SetRole(ctx context.Context, id int64, roleName string) error {
	return r.update(ctx, id, `UPDATE users SET role_name = $2, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, roleName)
}

func (r *Repository) SetStatus(ctx context.Context, id int64, status string) error {
	return r.update(ctx, id, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, status)
}

func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindNotFound, "user not found")
	}
	return nil
}

func (r *Repository) update(ctx context.Context, id int64, query string, arg any) error {
	tag, err := r.pool.Exec(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindNotFound, "user not found")
	}
	return nil
}

func scanUser(row pgx.Row) (identity.User, error) {
	var user identity.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.RoleName,
		&user.Status, &user.Generation, &user.IsDeleted, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, shared.E(shared.KindNotFound, "user not found")
		}
		return identity.User{}, err
	}
	return user, nil
}

var _ RepositoryPort = (*Repository)(nil)
