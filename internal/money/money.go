// Package money holds the currency and calendar helpers every ledger
// calculation is built on.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/shared"
)

// MinorUnits is the number of decimal places kept for USD amounts.
const MinorUnits = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to the currency minor unit, half away from zero.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnits)
}

// ApplyPercentage returns base * percent / 100, rounded.
func ApplyPercentage(base, percent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(percent).Div(hundred))
}

// Ratio returns part / whole, or zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole)
}

// ValidatePercentage rejects values outside [0,100].
func ValidatePercentage(name string, percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return &shared.InvalidPercentageError{Name: name, Value: percent.String()}
	}
	return nil
}

// Sum adds amounts and rounds the result.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round(total)
}

// ClampZero returns zero for negative amounts.
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Format renders an amount with exactly two decimals.
func Format(amount decimal.Decimal) string {
	return Round(amount).StringFixed(MinorUnits)
}

// FromFloat converts a float input (form values, tests) into a rounded amount.
func FromFloat(v float64) decimal.Decimal {
	return Round(decimal.NewFromFloat(v))
}
