package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/foundry-erp/foundry-erp/internal/rbac"
	"github.com/foundry-erp/foundry-erp/jobs"
)

// Enqueuer submits activity record tasks to the queue.
type Enqueuer interface {
	EnqueueActivityRecord(ctx context.Context, payload jobs.ActivityRecordPayload) (*asynq.TaskInfo, error)
}

// Recorder ships access events to the background queue. Failures are logged
// and dropped so request handling never depends on the queue being up.
type Recorder struct {
	enqueuer Enqueuer
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewRecorder constructs a Recorder.
func NewRecorder(enqueuer Enqueuer, logger *slog.Logger) *Recorder {
	return &Recorder{enqueuer: enqueuer, logger: logger, timeout: 2 * time.Second, now: time.Now}
}

// RecordAccess enqueues the event. The request context is detached so an
// already finished request cannot cancel the enqueue.
func (rec *Recorder) RecordAccess(ctx context.Context, event rbac.AccessEvent) {
	payload := jobs.ActivityRecordPayload{
		UserID:     event.UserID,
		Username:   event.Username,
		Permission: event.Permission,
		Method:     event.Method,
		Path:       event.Path,
		OccurredAt: rec.now().UTC(),
	}
	enqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rec.timeout)
	defer cancel()
	if _, err := rec.enqueuer.EnqueueActivityRecord(enqCtx, payload); err != nil {
		rec.logger.Warn("activity enqueue failed",
			slog.Any("error", err),
			slog.Int64("user_id", event.UserID),
			slog.String("permission", event.Permission))
	}
}

var _ rbac.ActivityRecorder = (*Recorder)(nil)

// NewTaskHandler returns the Asynq handler that persists activity entries.
func NewTaskHandler(repo *Repository, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload jobs.ActivityRecordPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("activity payload malformed", slog.Any("error", err))
			return asynq.SkipRetry
		}
		entry := Entry{
			UserID:     payload.UserID,
			Username:   payload.Username,
			Permission: payload.Permission,
			Method:     payload.Method,
			Path:       payload.Path,
			OccurredAt: payload.OccurredAt,
		}
		if err := repo.Insert(ctx, entry); err != nil {
			logger.Error("activity insert failed", slog.Any("error", err))
			return err
		}
		return nil
	}
}
