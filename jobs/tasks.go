package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceSend delivers a sent invoice to its client.
	TaskInvoiceSend = "invoice:send"
	// TaskAgingWarmup pre-builds today's receivables aging per company.
	TaskAgingWarmup = "aging:warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// InvoiceSendPayload identifies the invoice to deliver.
type InvoiceSendPayload struct {
	CompanyID   int64  `json:"company_id"`
	InvoiceID   int64  `json:"invoice_id"`
	Number      string `json:"number"`
	ClientEmail string `json:"client_email"`
	Total       string `json:"total"`
}

// AgingWarmupPayload bounds how many companies are warmed in parallel.
type AgingWarmupPayload struct {
	Concurrency int `json:"concurrency"`
}

// IdempotencyCleanupPayload sets how long claimed keys are retained.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewInvoiceSendTask constructs an invoice delivery task.
func NewInvoiceSendTask(payload InvoiceSendPayload) (*asynq.Task, error) {
	return newTask(TaskInvoiceSend, payload)
}

// NewAgingWarmupTask constructs the aging warmup task.
func NewAgingWarmupTask(concurrency int) (*asynq.Task, error) {
	return newTask(TaskAgingWarmup, AgingWarmupPayload{Concurrency: concurrency})
}

// NewIdempotencyCleanupTask constructs the key retention task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, IdempotencyCleanupPayload{RetentionHours: retentionHours})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
