package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classward/classward/internal/platform/db"
	"github.com/classward/classward/internal/shared"
)

// Repository is the persistence port for transfer requests.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
	GetRequest(ctx context.Context, id uuid.UUID) (Request, error)
	ListRequests(ctx context.Context, filters ListFilters) ([]Request, error)
	CreatePending(ctx context.Context, req Request) (Request, error)
}

// TxRepository covers the operations that must share one transaction:
// reading a request under lock, flipping approvals and status, and moving
// the enrollment row.
type TxRepository interface {
	GetRequestForUpdate(ctx context.Context, id uuid.UUID) (Request, error)
	SetApprovals(ctx context.Context, id uuid.UUID, source, target ApprovalState) error
	SetStatus(ctx context.Context, id uuid.UUID, status RequestStatus, resolvedBy *int64) error
	MoveEnrollment(ctx context.Context, studentID, fromGroupID, toGroupID int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const requestColumns = `id, student_id, source_group_id, target_group_id, reason,
	source_approval, target_approval, status, resolved_by, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.StudentID, &req.SourceGroupID, &req.TargetGroupID, &req.Reason,
		&req.SourceApproval, &req.TargetApproval, &req.Status, &req.ResolvedBy, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, shared.E(shared.KindNotFound, "transfer request not found")
	}
	if err != nil {
		return Request{}, fmt.Errorf("scan transfer request: %w", err)
	}
	return req, nil
}

func (r *pgRepository) GetRequest(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *pgRepository) ListRequests(ctx context.Context, filters ListFilters) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM transfer_requests WHERE 1=1`
	args := make([]any, 0, 3)
	if filters.StudentID != 0 {
		args = append(args, filters.StudentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.GroupIDs != nil {
		args = append(args, filters.GroupIDs)
		query += fmt.Sprintf(" AND (source_group_id = ANY($%d) OR target_group_id = ANY($%d))", len(args), len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// CreatePending inserts a new PENDING request. A partial unique index on
// (student_id) WHERE status = 'PENDING' enforces the one-open-request
// rule even under concurrent submissions.
func (r *pgRepository) CreatePending(ctx context.Context, req Request) (Request, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO transfer_requests
	(id, student_id, source_group_id, target_group_id, reason,
	 source_approval, target_approval, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'PENDING', 'PENDING', 'PENDING', NOW(), NOW())
RETURNING `+requestColumns,
		req.ID, req.StudentID, req.SourceGroupID, req.TargetGroupID, req.Reason)
	created, err := scanRequest(row)
	if isUniqueViolation(err) {
		return Request{}, shared.E(shared.KindConflict, "student already has a pending transfer request")
	}
	if err != nil {
		return Request{}, err
	}
	return created, nil
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgTxRepository{tx: tx})
	})
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (Request, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

func (r *pgTxRepository) SetApprovals(ctx context.Context, id uuid.UUID, source, target ApprovalState) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transfer_requests
SET source_approval = $2, target_approval = $3, updated_at = NOW()
WHERE id = $1`, id, source, target)
	if err != nil {
		return fmt.Errorf("set approvals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindNotFound, "transfer request not found")
	}
	return nil
}

func (r *pgTxRepository) SetStatus(ctx context.Context, id uuid.UUID, status RequestStatus, resolvedBy *int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transfer_requests
SET status = $2, resolved_by = $3, updated_at = NOW()
WHERE id = $1`, id, status, resolvedBy)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindNotFound, "transfer request not found")
	}
	return nil
}

// MoveEnrollment deletes the source row and inserts the target row in the
// enclosing transaction. The target group row is locked FOR UPDATE before
// the capacity count: concurrent moves into the same group queue on that
// lock, and each holder counts the enrollments the previous one committed.
// A target that filled up since submission surfaces as Conflict and rolls
// the whole move back.
func (r *pgTxRepository) MoveEnrollment(ctx context.Context, studentID, fromGroupID, toGroupID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM enrollments WHERE student_id = $1 AND group_id = $2`,
		studentID, fromGroupID)
	if err != nil {
		return fmt.Errorf("remove source enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.E(shared.KindValidation, "student is not enrolled in the source group")
	}

	var capacity int
	var status string
	err = r.tx.QueryRow(ctx, `SELECT capacity, status FROM groups WHERE id = $1 FOR UPDATE`,
		toGroupID).Scan(&capacity, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.E(shared.KindConflict, "target group is at capacity or not active")
	}
	if err != nil {
		return fmt.Errorf("lock target group: %w", err)
	}
	if status != "ACTIVE" {
		return shared.E(shared.KindConflict, "target group is at capacity or not active")
	}

	var occupancy int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE group_id = $1`,
		toGroupID).Scan(&occupancy); err != nil {
		return fmt.Errorf("count target enrollments: %w", err)
	}
	if occupancy >= capacity {
		return shared.E(shared.KindConflict, "target group is at capacity or not active")
	}

	_, err = r.tx.Exec(ctx, `INSERT INTO enrollments (student_id, group_id, created_at)
VALUES ($1, $2, NOW())`, studentID, toGroupID)
	if isUniqueViolation(err) {
		return shared.E(shared.KindConflict, "student already enrolled in the target group")
	}
	if err != nil {
		return fmt.Errorf("insert target enrollment: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
