package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/buildbook/buildbook/internal/jobs"
)

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps the idempotency key table bounded.
type IdempotencyCleanupJob struct {
	Keys      KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(keys KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Keys: keys, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes idempotency cleanup tasks. A payload retention overrides
// the configured one.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		return asynq.SkipRetry
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := jobLogger(j.Logger, TaskIdempotencyCleanup)
	removed, err := j.Keys.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("purge idempotency keys", slog.Any("error", err))
		return err
	}
	metrics.AddItems(TaskIdempotencyCleanup, int(removed))
	logger.Info("purged idempotency keys", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return nil
}
