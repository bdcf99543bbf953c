package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classward/classward/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Get(ctx context.Context, name string) (Role, error)
	List(ctx context.Context) ([]Role, error)
	SetPermissions(ctx context.Context, name string, permissions []string) (Role, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, permissions, is_active, created_at, updated_at`

// Get fetches a role by name.
func (r *Repository) Get(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.Ef(shared.KindNotFound, "role %s not found", name)
		}
		return Role{}, err
	}
	return role, nil
}

// List returns all roles ordered by name.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetPermissions replaces the stored permission set for a role.
func (r *Repository) SetPermissions(ctx context.Context, name string, permissions []string) (Role, error) {
	row := r.pool.QueryRow(ctx, `UPDATE roles SET permissions = $2, updated_at = NOW()
WHERE name = $1 RETURNING `+roleColumns, name, permissions)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.Ef(shared.KindNotFound, "role %s not found", name)
		}
		return Role{}, err
	}
	return role, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	return role, nil
}

var _ RepositoryPort = (*Repository)(nil)
