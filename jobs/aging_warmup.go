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

// AgingWarmer builds and caches today's aging reports.
type AgingWarmer interface {
	WarmUp(ctx context.Context, concurrency int) (int, error)
}

// AgingWarmupJob pre-populates receivables aging caches for every company
// with open invoices.
type AgingWarmupJob struct {
	Aging              AgingWarmer
	Logger             *slog.Logger
	Metrics            *jobmetrics.Metrics
	DefaultConcurrency int
	Timeout            time.Duration
}

// NewAgingWarmupJob wires dependencies for the warmup handler.
func NewAgingWarmupJob(warmer AgingWarmer, concurrency int, logger *slog.Logger, metrics *jobmetrics.Metrics) *AgingWarmupJob {
	return &AgingWarmupJob{
		Aging:              warmer,
		Logger:             logger,
		Metrics:            metrics,
		DefaultConcurrency: concurrency,
		Timeout:            5 * time.Minute,
	}
}

// Handle processes aging warmup tasks.
func (j *AgingWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Aging == nil {
		return errors.New("aging warmup: handler not configured")
	}
	var payload AgingWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	concurrency := payload.Concurrency
	if concurrency <= 0 {
		concurrency = j.DefaultConcurrency
	}

	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskAgingWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := jobLogger(j.Logger, TaskAgingWarmup)
	logger.Info("starting aging warmup", slog.Int("concurrency", concurrency))
	started := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	warmed, err := j.Aging.WarmUp(ctx, concurrency)
	if err != nil {
		logger.Error("aging warmup", slog.Any("error", err))
		return err
	}
	metrics.AddItems(TaskAgingWarmup, warmed)
	logger.Info("completed aging warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(started)))
	return nil
}
