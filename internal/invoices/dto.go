package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
)

type lineRequest struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

type createRequest struct {
	ClientID     int64           `json:"client_id" validate:"required,gt=0"`
	ClientName   string          `json:"client_name" validate:"required,max=200"`
	ClientEmail  string          `json:"client_email" validate:"omitempty,email"`
	ProjectID    *int64          `json:"project_id" validate:"omitempty,gt=0"`
	IssueDate    string          `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate      string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	PaymentTerms string          `json:"payment_terms" validate:"max=100"`
	Notes        string          `json:"notes" validate:"max=2000"`
	Lines        []lineRequest   `json:"lines" validate:"dive"`
}

type updateLinesRequest struct {
	TaxRate *decimal.Decimal `json:"tax_rate"`
	Lines   []lineRequest    `json:"lines" validate:"dive"`
}

type paymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaidOn         string          `json:"paid_on" validate:"omitempty,datetime=2006-01-02"`
	Method         string          `json:"method" validate:"omitempty,oneof=cash check ach card wire other"`
	Reference      string          `json:"reference" validate:"max=200"`
	IdempotencyKey string          `json:"idempotency_key" validate:"omitempty,max=100"`
}

func toLineInputs(reqs []lineRequest) []LineInput {
	out := make([]LineInput, len(reqs))
	for i, l := range reqs {
		out[i] = LineInput{Description: l.Description, Quantity: l.Quantity, Rate: l.Rate}
	}
	return out
}

// parseDate reads a validated YYYY-MM-DD string; empty yields the zero time.
func parseDate(raw string, loc *time.Location) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(money.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
