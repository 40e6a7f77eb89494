package money

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"2.675":   "2.68",
		"10.004":  "10",
		"0.125":   "0.13",
		"99.999":  "100",
		"1234.50": "1234.5",
	}
	for in, want := range cases {
		require.True(t, Round(d(in)).Equal(d(want)), "round(%s)", in)
	}
}

func TestRepeatedAdditionsDoNotDrift(t *testing.T) {
	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = Round(total.Add(d("0.10")))
	}
	require.Equal(t, "100.00", Format(total))
}

func TestApplyPercentage(t *testing.T) {
	require.Equal(t, "40.00", Format(ApplyPercentage(d("500"), d("8"))))
	require.Equal(t, "0.83", Format(ApplyPercentage(d("10.33"), d("8.0"))))
	require.Equal(t, "0.00", Format(ApplyPercentage(d("0"), d("8"))))
}

func TestValidatePercentage(t *testing.T) {
	require.NoError(t, ValidatePercentage("tax_rate", d("0")))
	require.NoError(t, ValidatePercentage("tax_rate", d("100")))

	err := ValidatePercentage("markup_percentage", d("100.01"))
	var pctErr *shared.InvalidPercentageError
	require.ErrorAs(t, err, &pctErr)
	require.Equal(t, "markup_percentage", pctErr.Name)
	require.True(t, errors.Is(err, shared.ErrValidation))

	require.Error(t, ValidatePercentage("tax_rate", d("-1")))
}

func TestRatioGuardsZero(t *testing.T) {
	require.True(t, Ratio(d("5"), decimal.Zero).IsZero())
	require.Equal(t, "0.5", Ratio(d("5"), d("10")).String())
}

func TestClampZero(t *testing.T) {
	require.True(t, ClampZero(d("-3")).IsZero())
	require.Equal(t, "3", ClampZero(d("3")).String())
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	today := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	require.Equal(t, 1, DaysBetween(due, today))

	sameDayLate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 0, DaysBetween(sameDayLate, due))

	require.Equal(t, -1, DaysBetween(today, due))
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	due := time.Date(2026, 3, 7, 12, 0, 0, 0, loc)
	today := time.Date(2026, 3, 9, 0, 30, 0, 0, loc)
	require.Equal(t, 2, DaysBetween(due, today))
}

func TestDaysBetweenKeepsStoredDateWestOfUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 0, DaysBetween(due, time.Date(2026, 5, 1, 10, 0, 0, 0, loc)))
	require.Equal(t, 30, DaysBetween(due, time.Date(2026, 5, 31, 12, 0, 0, 0, loc)))
	require.Equal(t, 30, DaysBetween(due, time.Date(2026, 5, 31, 23, 30, 0, 0, loc)))
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
}
