// Package invoices owns the invoice lifecycle: line pricing, derived
// status and balance, numbering and the explicit user transitions.
package invoices

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/pricing"
	"github.com/buildbook/buildbook/internal/shared"
)

// BuildLines prices user-entered lines in order.
func BuildLines(inputs []LineInput) ([]LineItem, error) {
	lines := make([]LineItem, len(inputs))
	for i, in := range inputs {
		if err := pricing.ValidateLine(i, in.Quantity, in.Rate); err != nil {
			return nil, err
		}
		lines[i] = LineItem{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			Amount:      pricing.Amount(in.Quantity, in.Rate),
			Position:    i,
		}
	}
	return lines, nil
}

// Derive recomputes totals, balance and status from the invoice's stored
// fields and its full payment set. The input is not modified.
func Derive(inv Invoice, payments []Payment, today time.Time) (Invoice, error) {
	out := inv
	out.Lines = append([]LineItem(nil), inv.Lines...)

	priced := make([]pricing.Line, len(out.Lines))
	for i, l := range out.Lines {
		priced[i] = pricing.Line{Quantity: l.Quantity, Rate: l.Rate}
	}
	summary, err := pricing.Summarize(priced, inv.TaxRate)
	if err != nil {
		return Invoice{}, err
	}
	for i := range out.Lines {
		out.Lines[i].Amount = summary.Amounts[i]
	}
	out.Subtotal = summary.Subtotal
	out.TaxAmount = summary.TaxAmount
	out.Total = summary.Total

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	out.AmountPaid = money.Round(paid)
	out.BalanceDue = money.ClampZero(money.Round(out.Total.Sub(out.AmountPaid)))
	out.Status = deriveStatus(out, today)
	return out, nil
}

func deriveStatus(inv Invoice, today time.Time) Status {
	stored := inv.StoredStatus
	switch {
	case stored.Terminal():
		return stored
	case stored == StatusDraft:
		return StatusDraft
	case inv.AmountPaid.GreaterThanOrEqual(inv.Total):
		return StatusPaid
	case money.DaysBetween(inv.DueDate, today) > 0 && inv.BalanceDue.IsPositive():
		return StatusOverdue
	case inv.AmountPaid.IsPositive():
		return StatusPartial
	}
	return stored
}

func transitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, from, to)
}

// Send moves a draft to sent. The client must have an email address.
func Send(inv *Invoice, now time.Time) error {
	if inv.StoredStatus != StatusDraft {
		return transitionError(inv.StoredStatus, StatusSent)
	}
	if strings.TrimSpace(inv.ClientEmail) == "" {
		return &shared.MissingRecipientError{InvoiceNumber: inv.Number}
	}
	inv.StoredStatus = StatusSent
	inv.SentAt = &now
	return nil
}

// MarkViewed records the client's first view of a sent invoice.
// Repeated views keep the original timestamp.
func MarkViewed(inv *Invoice, now time.Time) error {
	switch inv.StoredStatus {
	case StatusViewed:
		return nil
	case StatusSent:
		inv.StoredStatus = StatusViewed
		inv.ViewedAt = &now
		return nil
	}
	return transitionError(inv.StoredStatus, StatusViewed)
}

// Cancel terminates an invoice that is neither paid nor already terminal.
// inv.Status must hold the derived status.
func Cancel(inv *Invoice, now time.Time) error {
	if inv.Status == StatusPaid || inv.StoredStatus.Terminal() {
		return transitionError(inv.Status, StatusCancelled)
	}
	inv.StoredStatus = StatusCancelled
	inv.Status = StatusCancelled
	inv.CancelledAt = &now
	return nil
}

// Void terminates an invoice that is not paid. A cancelled invoice may
// still be voided.
func Void(inv *Invoice, now time.Time) error {
	if inv.Status == StatusPaid || inv.StoredStatus == StatusVoid {
		return transitionError(inv.Status, StatusVoid)
	}
	inv.StoredStatus = StatusVoid
	inv.Status = StatusVoid
	inv.VoidedAt = &now
	return nil
}

// Outstanding reports whether a derived invoice still carries an open balance
// that counts toward receivables. Drafts count; cancelled and void do not.
func Outstanding(inv Invoice) bool {
	return inv.BalanceDue.IsPositive() && !inv.Status.Terminal()
}
