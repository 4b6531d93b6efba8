package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeActivityRecord is the task type for recording access activity.
	TaskTypeActivityRecord = "activity:record"
)

// ActivityRecordPayload describes one authorized request to be persisted.
type ActivityRecordPayload struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Permission string    `json:"permission"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewActivityRecordTask constructs an Asynq task.
func NewActivityRecordTask(payload ActivityRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeActivityRecord, data, asynq.Queue(QueueDefault)), nil
}
