package invoices

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice statuses. Only draft, sent, viewed, cancelled
// and void are stored; partial, paid and overdue are derived on read.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
	StatusVoid      Status = "void"
)

// Terminal reports whether no further lifecycle action applies.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusVoid
}

// Stored reports whether s may be persisted.
func (s Status) Stored() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusCancelled, StatusVoid:
		return true
	}
	return false
}

// LineItem is an invoice line. Amount is always recomputed from quantity and rate.
type LineItem struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
}

// Invoice is a client invoice with its computed totals.
type Invoice struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	ClientID     int64           `json:"client_id"`
	ClientName   string          `json:"client_name"`
	ClientEmail  string          `json:"client_email"`
	ProjectID    *int64          `json:"project_id,omitempty"`
	Number       string          `json:"number"`
	IssueDate    time.Time       `json:"issue_date"`
	DueDate      time.Time       `json:"due_date"`
	Lines        []LineItem      `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Total        decimal.Decimal `json:"total_amount"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	BalanceDue   decimal.Decimal `json:"balance_due"`
	Status       Status          `json:"status"`
	StoredStatus Status          `json:"-"`
	PaymentTerms string          `json:"payment_terms"`
	Notes        string          `json:"notes"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
	ViewedAt     *time.Time      `json:"viewed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Payment is a recorded client payment against an invoice.
type Payment struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidOn         time.Time       `json:"paid_on"`
	Method         string          `json:"method"`
	Reference      string          `json:"reference"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LineInput is a line as entered by the user.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
}

// CreateInput carries the fields of a new invoice.
type CreateInput struct {
	CompanyID    int64
	ClientID     int64
	ClientName   string
	ClientEmail  string
	ProjectID    *int64
	IssueDate    time.Time
	DueDate      time.Time
	TaxRate      decimal.Decimal
	PaymentTerms string
	Notes        string
	Lines        []LineInput
}

// PaymentInput records a payment.
type PaymentInput struct {
	Amount         decimal.Decimal
	PaidOn         time.Time
	Method         string
	Reference      string
	IdempotencyKey string
}

// ListFilter narrows invoice listings. Status matches the derived status.
type ListFilter struct {
	Status   Status
	ClientID int64
	Limit    int
}
