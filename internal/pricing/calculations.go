// Package pricing computes line amounts and document totals shared by
// invoices and quotes.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/shared"
)

// Line is the pricing view of a single line item.
type Line struct {
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Optional bool
}

// Summary holds the computed amounts for a set of lines.
type Summary struct {
	Amounts       []decimal.Decimal
	Subtotal      decimal.Decimal
	OptionalTotal decimal.Decimal
	TaxAmount     decimal.Decimal
	Total         decimal.Decimal
}

// Amount returns quantity * rate rounded to cents.
func Amount(quantity, rate decimal.Decimal) decimal.Decimal {
	return money.Round(quantity.Mul(rate))
}

// ValidateLine rejects negative quantities and rates.
func ValidateLine(index int, quantity, rate decimal.Decimal) error {
	if quantity.IsNegative() {
		return &shared.InvalidLineItemError{Index: index, Field: "quantity", Value: quantity.String()}
	}
	if rate.IsNegative() {
		return &shared.InvalidLineItemError{Index: index, Field: "rate", Value: rate.String()}
	}
	return nil
}

// Summarize prices every line and aggregates subtotal, optional total, tax and total.
// Zero-quantity lines are kept with a zero amount.
func Summarize(lines []Line, taxRate decimal.Decimal) (Summary, error) {
	if err := money.ValidatePercentage("tax_rate", taxRate); err != nil {
		return Summary{}, err
	}
	summary := Summary{
		Amounts:       make([]decimal.Decimal, len(lines)),
		Subtotal:      decimal.Zero,
		OptionalTotal: decimal.Zero,
	}
	for i, line := range lines {
		if err := ValidateLine(i, line.Quantity, line.Rate); err != nil {
			return Summary{}, err
		}
		amount := Amount(line.Quantity, line.Rate)
		summary.Amounts[i] = amount
		if line.Optional {
			summary.OptionalTotal = summary.OptionalTotal.Add(amount)
			continue
		}
		summary.Subtotal = summary.Subtotal.Add(amount)
	}
	summary.Subtotal = money.Round(summary.Subtotal)
	summary.OptionalTotal = money.Round(summary.OptionalTotal)
	summary.TaxAmount = money.ApplyPercentage(summary.Subtotal, taxRate)
	summary.Total = money.Round(summary.Subtotal.Add(summary.TaxAmount))
	return summary, nil
}
