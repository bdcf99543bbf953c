package audit

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskTypeRecord is the asynq task type for persisting audit events.
const TaskTypeRecord = "audit:record"

// TaskTypeCleanup prunes audit rows past retention; scheduled by cron.
const TaskTypeCleanup = "audit:cleanup"

// NewRecordTask wraps an event into an asynq task.
func NewRecordTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecord, data), nil
}

// NewCleanupTask builds the retention cleanup task.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeCleanup, nil)
}
