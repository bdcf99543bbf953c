package groups

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classward/classward/internal/platform/db"
	"github.com/classward/classward/internal/shared"
)

const uniqueViolation = "23505"

// RepositoryPort defines data access for groups and enrollments.
type RepositoryPort interface {
	GetGroup(ctx context.Context, id int64) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	ListGroupsByIDs(ctx context.Context, ids []int64) ([]Group, error)
	CreateGroup(ctx context.Context, input CreateGroupInput) (Group, error)
	UpdateGroup(ctx context.Context, input UpdateGroupInput) (Group, error)

	EnrollmentExists(ctx context.Context, studentID, groupID int64) (bool, error)
	CountEnrollments(ctx context.Context, groupID int64) (int, error)
	GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error)
	GroupIDsOfStudent(ctx context.Context, studentID int64) ([]int64, error)
	InsertEnrollment(ctx context.Context, studentID, groupID int64) error
	RemoveEnrollment(ctx context.Context, studentID, groupID int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const groupColumns = `id, name, owner_teacher_id, capacity, status, created_at, updated_at`

// GetGroup fetches a group by id.
func (r *Repository) GetGroup(ctx context.Context, id int64) (Group, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, shared.Ef(shared.KindNotFound, "group %d not found", id)
		}
		return Group{}, err
	}
	return group, nil
}

// ListGroups returns all groups ordered by name.
func (r *Repository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectGroups(rows)
}

// ListGroupsByIDs returns the groups matching ids.
func (r *Repository) ListGroupsByIDs(ctx context.Context, ids []int64) ([]Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	return collectGroups(rows)
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, input CreateGroupInput) (Group, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO groups (name, owner_teacher_id, capacity, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+groupColumns,
		input.Name, input.OwnerTeacherID, input.Capacity, GroupActive)
	group, err := scanGroup(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Group{}, shared.Ef(shared.KindConflict, "group %s already exists", input.Name)
		}
		return Group{}, err
	}
	return group, nil
}

// UpdateGroup updates name, capacity and status.
func (r *Repository) UpdateGroup(ctx context.Context, input UpdateGroupInput) (Group, error) {
	row := r.pool.QueryRow(ctx, `UPDATE groups SET name = $2, capacity = $3, status = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+groupColumns,
		input.ID, input.Name, input.Capacity, input.Status)
	group, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, shared.Ef(shared.KindNotFound, "group %d not found", input.ID)
		}
		return Group{}, err
	}
	return group, nil
}

// EnrollmentExists reports whether the student is enrolled in the group.
func (r *Repository) EnrollmentExists(ctx context.Context, studentID, groupID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2)`,
		studentID, groupID).Scan(&exists)
	return exists, err
}

// CountEnrollments returns the active enrollment count for a group.
func (r *Repository) CountEnrollments(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE group_id = $1`, groupID).Scan(&count)
	return count, err
}

// GroupIDsOwnedByTeacher returns the ids of groups the teacher owns.
func (r *Repository) GroupIDsOwnedByTeacher(ctx context.Context, teacherID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM groups WHERE owner_teacher_id = $1 ORDER BY id`, teacherID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// GroupIDsOfStudent returns the ids of groups the student is enrolled in.
func (r *Repository) GroupIDsOfStudent(ctx context.Context, studentID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT group_id FROM enrollments WHERE student_id = $1 ORDER BY group_id`, studentID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// InsertEnrollment admits a student into a group. The group row is locked
// FOR UPDATE for the duration of the check and insert, so concurrent
// admissions serialize on the row and the count each one performs includes
// every enrollment the previous lock holder committed. A group can never
// be pushed past its capacity.
func (r *Repository) InsertEnrollment(ctx context.Context, studentID, groupID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var capacity int
		var status GroupStatus
		err := tx.QueryRow(ctx, `SELECT capacity, status FROM groups WHERE id = $1 FOR UPDATE`,
			groupID).Scan(&capacity, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.Ef(shared.KindNotFound, "group %d not found", groupID)
		}
		if err != nil {
			return err
		}
		if status != GroupActive {
			return shared.E(shared.KindConflict, "group is at capacity or not active")
		}

		var occupancy int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE group_id = $1`,
			groupID).Scan(&occupancy); err != nil {
			return err
		}
		if occupancy >= capacity {
			return shared.E(shared.KindConflict, "group is at capacity or not active")
		}

		_, err = tx.Exec(ctx, `INSERT INTO enrollments (student_id, group_id, created_at)
VALUES ($1, $2, NOW())`, studentID, groupID)
		if isUniqueViolation(err) {
			return shared.E(shared.KindConflict, "student already enrolled in group")
		}
		return err
	})
}

// RemoveEnrollment withdraws a student from a group.
func (r *Repository) RemoveEnrollment(ctx context.Context, studentID, groupID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM enrollments WHERE student_id = $1 AND group_id = $2`, studentID, groupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindValidation, "student is not enrolled in group")
	}
	return nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var group Group
	if err := row.Scan(&group.ID, &group.Name, &group.OwnerTeacherID, &group.Capacity,
		&group.Status, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return Group{}, err
	}
	return group, nil
}

func collectGroups(rows pgx.Rows) ([]Group, error) {
	defer rows.Close()
	var out []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ RepositoryPort = (*Repository)(nil)
