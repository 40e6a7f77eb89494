// Package aging buckets outstanding receivables by days overdue and rolls
// them up into per-client exposure with a collections risk tier.
package aging

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
)

// Bucket names in report order.
const (
	BucketCurrent = "Current"
	Bucket31To60  = "31-60"
	Bucket61To90  = "61-90"
	BucketOver90  = "90+"
)

// BucketOrder is the fixed presentation order of the buckets.
var BucketOrder = []string{BucketCurrent, Bucket31To60, Bucket61To90, BucketOver90}

// RiskTier classifies a client's collections priority.
type RiskTier string

const (
	RiskHigh   RiskTier = "high"
	RiskMedium RiskTier = "medium"
	RiskLow    RiskTier = "low"
)

func (t RiskTier) rank() int {
	switch t {
	case RiskHigh:
		return 0
	case RiskMedium:
		return 1
	}
	return 2
}

// Recommended actions, one per risk branch.
const (
	ActionUrgentCollections = "Urgent: escalate to collections and suspend further work"
	ActionFinalNotice       = "Call client for final notice before escalation"
	ActionFriendlyReminder  = "Send friendly payment reminder"
	ActionMonitor           = "Monitor; no action required"
)

var (
	highRatio   = decimal.RequireFromString("0.50")
	mediumRatio = decimal.RequireFromString("0.20")
)

// Receivable is one invoice as seen by the classifier.
type Receivable struct {
	InvoiceID  int64           `json:"invoice_id"`
	Number     string          `json:"number"`
	ClientID   int64           `json:"client_id"`
	ClientName string          `json:"client_name"`
	DueDate    time.Time       `json:"due_date"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     string          `json:"status"`
}

// Bucket aggregates the invoices in one day range.
type Bucket struct {
	Name    string          `json:"name"`
	Count   int             `json:"count"`
	Balance decimal.Decimal `json:"balance"`
}

// ClientSummary is the per-client rollup.
type ClientSummary struct {
	ClientID          int64           `json:"client_id"`
	ClientName        string          `json:"client_name"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	InvoiceCount      int             `json:"invoice_count"`
	OldestDaysOverdue int             `json:"oldest_days_overdue"`
	Current           decimal.Decimal `json:"current"`
	Days31To60        decimal.Decimal `json:"days_31_60"`
	Days61To90        decimal.Decimal `json:"days_61_90"`
	Over90            decimal.Decimal `json:"over_90"`
	Risk              RiskTier        `json:"risk"`
	RecommendedAction string          `json:"recommended_action"`
}

// InvoiceRow is one classified invoice.
type InvoiceRow struct {
	InvoiceID   int64           `json:"invoice_id"`
	Number      string          `json:"number"`
	ClientID    int64           `json:"client_id"`
	ClientName  string          `json:"client_name"`
	DueDate     time.Time       `json:"due_date"`
	DaysOverdue int             `json:"days_overdue"`
	Bucket      string          `json:"bucket"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
}

// Report is the full aging view as of a date.
type Report struct {
	AsOf             time.Time       `json:"as_of"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	Buckets          []Bucket        `json:"buckets"`
	Clients          []ClientSummary `json:"clients"`
	Invoices         []InvoiceRow    `json:"invoices"`
}

// BucketFor maps days overdue to a bucket: 30 is Current, 90 is 61-90.
func BucketFor(daysOverdue int) string {
	switch {
	case daysOverdue <= 30:
		return BucketCurrent
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	}
	return BucketOver90
}

// AssessRisk derives the tier and recommended action; the first matching rule wins.
func AssessRisk(over90, total decimal.Decimal, oldestDays int) (RiskTier, string) {
	ratio := money.Ratio(over90, total)
	switch {
	case ratio.GreaterThan(highRatio) || oldestDays > 120:
		return RiskHigh, ActionUrgentCollections
	case ratio.GreaterThan(mediumRatio) || oldestDays > 60:
		return RiskMedium, ActionFinalNotice
	case oldestDays > 30:
		return RiskMedium, ActionFriendlyReminder
	}
	return RiskLow, ActionMonitor
}

// Counts reports whether a receivable belongs in the aging population.
func Counts(r Receivable) bool {
	if !r.BalanceDue.IsPositive() {
		return false
	}
	switch r.Status {
	case "void", "cancelled":
		return false
	}
	return true
}

// Classify builds the aging report for receivables as of today.
func Classify(receivables []Receivable, today time.Time) Report {
	report := Report{
		AsOf:             money.StartOfDay(today),
		TotalOutstanding: decimal.Zero,
		Buckets:          make([]Bucket, len(BucketOrder)),
		Clients:          []ClientSummary{},
		Invoices:         []InvoiceRow{},
	}
	bucketIndex := make(map[string]int, len(BucketOrder))
	for i, name := range BucketOrder {
		report.Buckets[i] = Bucket{Name: name, Balance: decimal.Zero}
		bucketIndex[name] = i
	}

	clients := map[int64]*ClientSummary{}
	for _, r := range receivables {
		if !Counts(r) {
			continue
		}
		days := money.DaysBetween(r.DueDate, today)
		name := BucketFor(days)
		balance := money.Round(r.BalanceDue)

		b := &report.Buckets[bucketIndex[name]]
		b.Count++
		b.Balance = b.Balance.Add(balance)
		report.TotalOutstanding = report.TotalOutstanding.Add(balance)

		report.Invoices = append(report.Invoices, InvoiceRow{
			InvoiceID:   r.InvoiceID,
			Number:      r.Number,
			ClientID:    r.ClientID,
			ClientName:  r.ClientName,
			DueDate:     r.DueDate,
			DaysOverdue: days,
			Bucket:      name,
			BalanceDue:  balance,
		})

		c, ok := clients[r.ClientID]
		if !ok {
			c = &ClientSummary{
				ClientID:          r.ClientID,
				ClientName:        r.ClientName,
				TotalOutstanding:  decimal.Zero,
				OldestDaysOverdue: days,
				Current:           decimal.Zero,
				Days31To60:        decimal.Zero,
				Days61To90:        decimal.Zero,
				Over90:            decimal.Zero,
			}
			clients[r.ClientID] = c
		}
		if c.ClientName == "" || (r.ClientName != "" && r.ClientName < c.ClientName) {
			c.ClientName = r.ClientName
		}
		c.InvoiceCount++
		c.TotalOutstanding = c.TotalOutstanding.Add(balance)
		if days > c.OldestDaysOverdue {
			c.OldestDaysOverdue = days
		}
		switch name {
		case BucketCurrent:
			c.Current = c.Current.Add(balance)
		case Bucket31To60:
			c.Days31To60 = c.Days31To60.Add(balance)
		case Bucket61To90:
			c.Days61To90 = c.Days61To90.Add(balance)
		default:
			c.Over90 = c.Over90.Add(balance)
		}
	}

	for _, c := range clients {
		c.Risk, c.RecommendedAction = AssessRisk(c.Over90, c.TotalOutstanding, c.OldestDaysOverdue)
		report.Clients = append(report.Clients, *c)
	}
	sort.Slice(report.Clients, func(i, j int) bool {
		a, b := report.Clients[i], report.Clients[j]
		if a.Risk.rank() != b.Risk.rank() {
			return a.Risk.rank() < b.Risk.rank()
		}
		if !a.TotalOutstanding.Equal(b.TotalOutstanding) {
			return a.TotalOutstanding.GreaterThan(b.TotalOutstanding)
		}
		return a.ClientID < b.ClientID
	})
	sort.Slice(report.Invoices, func(i, j int) bool {
		a, b := report.Invoices[i], report.Invoices[j]
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.InvoiceID < b.InvoiceID
	})
	return report
}
