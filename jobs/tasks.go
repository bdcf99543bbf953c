package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyTransfer is the task type for notifying a student that
	// their transfer request reached a terminal status.
	TaskTypeNotifyTransfer = "notify:transfer"
)

// NotifyTransferPayload describes a terminal transfer outcome.
type NotifyTransferPayload struct {
	RequestID string `json:"request_id"`
	StudentID int64  `json:"student_id"`
	Status    string `json:"status"`
}

// NewNotifyTransferTask constructs an Asynq task.
func NewNotifyTransferTask(payload NotifyTransferPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyTransfer, data), nil
}

// HandleNotifyTransferTask processes TaskTypeNotifyTransfer tasks.
func HandleNotifyTransferTask(ctx context.Context, t *asynq.Task) error {
	var payload NotifyTransferPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: deliver via the campus messaging bridge once it ships.
	slog.Default().Info("notify transfer outcome",
		slog.String("request_id", payload.RequestID),
		slog.Int64("student_id", payload.StudentID),
		slog.String("status", payload.Status))
	return nil
}

// TransferNotifier enqueues notification tasks for terminal transfer
// outcomes. Enqueue failures are logged and dropped.
type TransferNotifier struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewTransferNotifier constructs a TransferNotifier.
func NewTransferNotifier(client *asynq.Client, logger *slog.Logger) *TransferNotifier {
	return &TransferNotifier{client: client, logger: logger}
}

// TransferResolved enqueues the outcome notification.
func (n *TransferNotifier) TransferResolved(ctx context.Context, requestID string, studentID int64, status string) {
	if n == nil || n.client == nil {
		return
	}
	task, err := NewNotifyTransferTask(NotifyTransferPayload{
		RequestID: requestID,
		StudentID: studentID,
		Status:    status,
	})
	if err != nil {
		n.logger.Error("marshal transfer notification", slog.Any("error", err))
		return
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		n.logger.Error("enqueue transfer notification",
			slog.String("request_id", requestID),
			slog.Any("error", err))
	}
}
