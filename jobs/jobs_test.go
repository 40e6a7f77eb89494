package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/invoices"
	jobmetrics "github.com/buildbook/buildbook/internal/jobs"
	"github.com/buildbook/buildbook/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func TestInvoiceNotifierEnqueuesDelivery(t *testing.T) {
	queue := &recordingEnqueuer{}
	notifier := NewInvoiceNotifier(queue)
	inv := invoices.Invoice{
		ID: 9, CompanyID: 2, Number: "INV-0007", ClientEmail: "pat@example.com",
		Total: decimal.RequireFromString("1250.5"),
	}
	require.NoError(t, notifier.InvoiceSent(context.Background(), inv))
	require.Len(t, queue.tasks, 1)
	require.Equal(t, TaskInvoiceSend, queue.tasks[0].Type())

	var payload InvoiceSendPayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	require.Equal(t, int64(9), payload.InvoiceID)
	require.Equal(t, int64(2), payload.CompanyID)
	require.Equal(t, "pat@example.com", payload.ClientEmail)
	require.Equal(t, "1250.50", payload.Total)

	queue.err = errors.New("redis down")
	require.ErrorContains(t, notifier.InvoiceSent(context.Background(), inv), "redis down")
}

type stubLoader struct {
	inv invoices.Invoice
	err error
}

func (s stubLoader) Get(_ context.Context, _, _ int64) (invoices.Invoice, error) {
	return s.inv, s.err
}

func sendTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewInvoiceSendTask(InvoiceSendPayload{CompanyID: 1, InvoiceID: 4})
	require.NoError(t, err)
	return task
}

func TestInvoiceSendJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	ctx := context.Background()

	sent := invoices.Invoice{ID: 4, CompanyID: 1, Number: "INV-0004", ClientEmail: "a@b.co", StoredStatus: invoices.StatusSent}
	job := NewInvoiceSendJob(stubLoader{inv: sent}, discardLogger(), metrics)
	require.NoError(t, job.Handle(ctx, sendTask(t)))
	require.Equal(t, 1.0, counterValue(t, reg, "buildbook_job_items_total", map[string]string{"job": TaskInvoiceSend}))

	voided := sent
	voided.StoredStatus = invoices.StatusVoid
	job.Invoices = stubLoader{inv: voided}
	require.NoError(t, job.Handle(ctx, sendTask(t)))

	job.Invoices = stubLoader{err: shared.ErrNotFound}
	require.NoError(t, job.Handle(ctx, sendTask(t)))

	noEmail := sent
	noEmail.ClientEmail = ""
	job.Invoices = stubLoader{inv: noEmail}
	require.ErrorIs(t, job.Handle(ctx, sendTask(t)), asynq.SkipRetry)
	require.Equal(t, 1.0, counterValue(t, reg, "buildbook_jobs_failures_total", map[string]string{"job": TaskInvoiceSend}))
	require.Equal(t, 3.0, counterValue(t, reg, "buildbook_jobs_total", map[string]string{"job": TaskInvoiceSend, "status": "success"}))

	require.ErrorIs(t, job.Handle(ctx, asynq.NewTask(TaskInvoiceSend, []byte("{"))), asynq.SkipRetry)
}

type stubWarmer struct {
	concurrency int
	warmed      int
	err         error
}

func (s *stubWarmer) WarmUp(_ context.Context, concurrency int) (int, error) {
	s.concurrency = concurrency
	return s.warmed, s.err
}

func TestAgingWarmupJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	warmer := &stubWarmer{warmed: 3}
	job := NewAgingWarmupJob(warmer, 4, discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewAgingWarmupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 4, warmer.concurrency)
	require.Equal(t, 3.0, counterValue(t, reg, "buildbook_job_items_total", map[string]string{"job": TaskAgingWarmup}))

	task, err = NewAgingWarmupTask(8)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 8, warmer.concurrency)

	warmer.err = errors.New("company 5: boom")
	require.ErrorContains(t, job.Handle(context.Background(), task), "boom")
	require.Equal(t, 1.0, counterValue(t, reg, "buildbook_jobs_failures_total", map[string]string{"job": TaskAgingWarmup}))
}

type stubPurger struct {
	retention time.Duration
	removed   int64
}

func (s *stubPurger) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, nil
}

func TestIdempotencyCleanupJob(t *testing.T) {
	purger := &stubPurger{removed: 12}
	job := NewIdempotencyCleanupJob(purger, 168*time.Hour, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 168*time.Hour, purger.retention)

	task, err := NewIdempotencyCleanupTask(24)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, purger.retention)

	job.Retention = 0
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHandlerEndpoints(t *testing.T) {
	inspector := stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Size: 7, Pending: 5, Retry: 2, Failed: 1}}
	router := chi.NewRouter()
	router.Route("/jobs", NewHandler(inspector, discardLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":5}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var stats QueueStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Equal(t, 7, stats.Size)
	require.Equal(t, 2, stats.Retry)
	require.Equal(t, 1, stats.Failed)

	router = chi.NewRouter()
	router.Route("/jobs", NewHandler(stubInspector{err: errors.New("no redis")}, discardLogger()).MountRoutes)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
