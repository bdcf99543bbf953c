package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writer persists audit events into audit_logs. It runs in the worker
// process behind the asynq queue.
type Writer struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	retention time.Duration
}

// NewWriter constructs a Writer.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger, retention time.Duration) *Writer {
	return &Writer{pool: pool, logger: logger, retention: retention}
}

// Insert persists a single event.
func (w *Writer) Insert(ctx context.Context, event Event) error {
	if w == nil || w.pool == nil {
		return errors.New("audit writer not initialised")
	}
	if event.Action == "" || event.Entity == "" || event.EntityID == "" {
		return errors.New("audit event requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		event.ActorID, event.Action, event.Entity, event.EntityID, metaJSON, event.At)
	return err
}

// HandleRecordTask processes TaskTypeRecord tasks.
func (w *Writer) HandleRecordTask(ctx context.Context, t *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		w.logger.Error("decode audit task", slog.Any("error", err))
		return asynq.SkipRetry
	}
	return w.Insert(ctx, event)
}

// HandleCleanupTask removes rows older than the retention window.
func (w *Writer) HandleCleanupTask(ctx context.Context, _ *asynq.Task) error {
	if w.retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-w.retention)
	tag, err := w.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return err
	}
	w.logger.Info("audit cleanup", slog.Int64("deleted", tag.RowsAffected()))
	return nil
}

// List returns the audit timeline for one entity, oldest first.
func (w *Writer) List(ctx context.Context, entity, entityID string) ([]Event, error) {
	rows, err := w.pool.Query(ctx, `SELECT actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE entity = $1 AND entity_id = $2 ORDER BY occurred_at ASC`, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var event Event
		var metaJSON []byte
		if err := rows.Scan(&event.ActorID, &event.Action, &event.Entity, &event.EntityID, &metaJSON, &event.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &event.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
