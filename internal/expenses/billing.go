package expenses

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/shared"
)

// BillableAmount is the amount re-billed to the client. Non-billable
// expenses return the raw amount and ignore any markup.
func BillableAmount(e Expense) (decimal.Decimal, error) {
	if !e.BillableToClient {
		return e.Amount, nil
	}
	markup := decimal.Zero
	if e.MarkupPercentage != nil {
		markup = *e.MarkupPercentage
	}
	if err := money.ValidatePercentage("markup_percentage", markup); err != nil {
		return decimal.Decimal{}, err
	}
	return money.Round(e.Amount.Add(e.Amount.Mul(markup).Div(decimal.NewFromInt(100)))), nil
}

// SetPaymentStatus assigns a new status. Moving to paid stamps PaidAt;
// cancelled expenses cannot be reopened.
func SetPaymentStatus(e *Expense, to PaymentStatus, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", shared.ErrValidation, to)
	}
	if e.PaymentStatus == StatusCancelled && to != StatusCancelled {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, e.PaymentStatus, to)
	}
	switch {
	case to == StatusPaid && e.PaymentStatus != StatusPaid:
		e.PaidAt = &now
	case to != StatusPaid:
		e.PaidAt = nil
	}
	e.PaymentStatus = to
	return nil
}

// Summary aggregates a set of expenses with plain sums.
type Summary struct {
	Count              int                               `json:"count"`
	Total              decimal.Decimal                   `json:"total"`
	ByStatus           map[PaymentStatus]decimal.Decimal `json:"by_status"`
	ByCategory         map[Category]decimal.Decimal      `json:"by_category"`
	BillableTotal      decimal.Decimal                   `json:"billable_total"`
	NonBillableTotal   decimal.Decimal                   `json:"non_billable_total"`
	BillableToClient   decimal.Decimal                   `json:"billable_to_client"`
	UninvoicedBillable decimal.Decimal                   `json:"uninvoiced_billable"`
}

// Summarize totals expenses by status, category and billability.
func Summarize(expenses []Expense) (Summary, error) {
	s := Summary{
		Total:              decimal.Zero,
		ByStatus:           make(map[PaymentStatus]decimal.Decimal, len(Statuses)),
		ByCategory:         map[Category]decimal.Decimal{},
		BillableTotal:      decimal.Zero,
		NonBillableTotal:   decimal.Zero,
		BillableToClient:   decimal.Zero,
		UninvoicedBillable: decimal.Zero,
	}
	for _, st := range Statuses {
		s.ByStatus[st] = decimal.Zero
	}
	for _, e := range expenses {
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		s.ByStatus[e.PaymentStatus] = s.ByStatus[e.PaymentStatus].Add(e.Amount)
		s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		if !e.BillableToClient {
			s.NonBillableTotal = s.NonBillableTotal.Add(e.Amount)
			continue
		}
		billed, err := BillableAmount(e)
		if err != nil {
			return Summary{}, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		s.BillableTotal = s.BillableTotal.Add(e.Amount)
		s.BillableToClient = s.BillableToClient.Add(billed)
		if !e.Invoiced {
			s.UninvoicedBillable = s.UninvoicedBillable.Add(billed)
		}
	}
	return s, nil
}
