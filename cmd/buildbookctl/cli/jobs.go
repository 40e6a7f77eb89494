package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/buildbook/buildbook/jobs"
)

// TriggerOptions carries the optional task arguments accepted by Trigger.
type TriggerOptions struct {
	CompanyID      int64
	InvoiceID      int64
	Concurrency    int
	RetentionHours int
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    jobs.Enqueuer
	inspector jobs.QueueInspector
	closers   []func() error
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client := jobs.NewClient(opts)
	inspector := asynq.NewInspector(opts)
	return &JobsCLI{client: client, inspector: inspector, closers: []func() error{inspector.Close, client.Close}}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskAgingWarmup:
		task, err = jobs.NewAgingWarmupTask(opts.Concurrency)
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask(opts.RetentionHours)
	case jobs.TaskInvoiceSend:
		if opts.CompanyID == 0 || opts.InvoiceID == 0 {
			return nil, errors.New("jobs cli: invoice:send needs --company and --invoice")
		}
		task, err = jobs.NewInvoiceSendTask(jobs.InvoiceSendPayload{CompanyID: opts.CompanyID, InvoiceID: opts.InvoiceID})
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (jobs.QueueStats, error) {
	if c == nil || c.inspector == nil {
		return jobs.QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return jobs.QueueStats{}, err
	}
	return jobs.StatsFromInfo(info), nil
}
