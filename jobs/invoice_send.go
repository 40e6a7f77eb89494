package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/buildbook/buildbook/internal/invoices"
	jobmetrics "github.com/buildbook/buildbook/internal/jobs"
	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InvoiceNotifier queues delivery of sent invoices. It satisfies
// invoices.Notifier.
type InvoiceNotifier struct {
	queue Enqueuer
}

// NewInvoiceNotifier wraps an Asynq enqueuer.
func NewInvoiceNotifier(queue Enqueuer) *InvoiceNotifier {
	return &InvoiceNotifier{queue: queue}
}

// InvoiceSent enqueues an invoice:send task for inv.
func (n *InvoiceNotifier) InvoiceSent(ctx context.Context, inv invoices.Invoice) error {
	if n == nil || n.queue == nil {
		return errors.New("invoice notifier: queue not configured")
	}
	task, err := NewInvoiceSendTask(InvoiceSendPayload{
		CompanyID:   inv.CompanyID,
		InvoiceID:   inv.ID,
		Number:      inv.Number,
		ClientEmail: inv.ClientEmail,
		Total:       money.Format(inv.Total),
	})
	if err != nil {
		return err
	}
	if _, err := n.queue.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskInvoiceSend, err)
	}
	return nil
}

// InvoiceLoader reads the current state of an invoice.
type InvoiceLoader interface {
	Get(ctx context.Context, companyID, id int64) (invoices.Invoice, error)
}

// InvoiceSendJob delivers sent invoices to their clients.
type InvoiceSendJob struct {
	Invoices InvoiceLoader
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewInvoiceSendJob wires dependencies for the delivery handler.
func NewInvoiceSendJob(loader InvoiceLoader, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceSendJob {
	return &InvoiceSendJob{Invoices: loader, Logger: logger, Metrics: metrics}
}

// Handle processes invoice:send tasks. Invoices that were cancelled or voided
// after sending are skipped.
func (j *InvoiceSendJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("invoice send: handler not configured")
	}
	var payload InvoiceSendPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskInvoiceSend)
	defer func() {
		err = tracker.End(err)
	}()

	logger := jobLogger(j.Logger, TaskInvoiceSend).With(
		slog.Int64("company_id", payload.CompanyID),
		slog.Int64("invoice_id", payload.InvoiceID))

	inv, err := j.Invoices.Get(ctx, payload.CompanyID, payload.InvoiceID)
	if errors.Is(err, shared.ErrNotFound) {
		logger.Warn("invoice gone before delivery")
		return nil
	}
	if err != nil {
		return err
	}
	if inv.StoredStatus.Terminal() {
		logger.Info("skipping delivery of terminated invoice", slog.String("status", string(inv.StoredStatus)))
		return nil
	}
	if inv.ClientEmail == "" {
		logger.Warn("invoice has no client email", slog.String("number", inv.Number))
		return fmt.Errorf("%w: invoice %s", asynq.SkipRetry, inv.Number)
	}
	logger.Info("invoice delivered",
		slog.String("number", inv.Number),
		slog.String("to", inv.ClientEmail),
		slog.String("balance_due", money.Format(inv.BalanceDue)))
	metricsOrDefault(j.Metrics).AddItems(TaskInvoiceSend, 1)
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}
