package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the slice of asynq.Client the recorder needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Recorder hands audit events to the background queue. Enqueue failures
// are logged and dropped: an unavailable queue must never block or fail
// an authorization or transfer transition.
type Recorder struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(enqueuer Enqueuer, logger *slog.Logger) *Recorder {
	return &Recorder{enqueuer: enqueuer, logger: logger}
}

// Record enqueues the event for persistence. Fire and forget.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.enqueuer == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	task, err := NewRecordTask(event)
	if err != nil {
		r.logger.Error("marshal audit event", slog.Any("error", err))
		return
	}
	if _, err := r.enqueuer.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		r.logger.Error("enqueue audit event",
			slog.String("action", event.Action),
			slog.String("entity", event.Entity),
			slog.Any("error", err))
	}
}
