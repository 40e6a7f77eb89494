// Package timesheets turns logged crew hours into billable labor reports.
package timesheets

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/pricing"
)

// Entry is one worker's hours on one day.
type Entry struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	ProjectID   int64           `json:"project_id"`
	ProjectName string          `json:"project_name"`
	WorkerName  string          `json:"worker_name"`
	WorkDate    time.Time       `json:"work_date"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	Billable    bool            `json:"billable"`
	Notes       string          `json:"notes,omitempty"`
}

// Row is a priced entry.
type Row struct {
	Entry
	Amount decimal.Decimal `json:"amount"`
}

// WorkerTotal sums one worker's rows.
type WorkerTotal struct {
	Worker         string          `json:"worker"`
	Hours          decimal.Decimal `json:"hours"`
	Amount         decimal.Decimal `json:"amount"`
	BillableAmount decimal.Decimal `json:"billable_amount"`
}

// Report is the priced timesheet for a date range.
type Report struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Rows           []Row           `json:"rows"`
	Workers        []WorkerTotal   `json:"workers"`
	TotalHours     decimal.Decimal `json:"total_hours"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	BillableAmount decimal.Decimal `json:"billable_amount"`
}

// BuildReport prices the entries dated within [from, to]. A zero bound is
// open. Rows are ordered by date, then worker.
func BuildReport(entries []Entry, from, to time.Time) (Report, error) {
	report := Report{
		From:           from,
		To:             to,
		Rows:           []Row{},
		Workers:        []WorkerTotal{},
		TotalHours:     decimal.Zero,
		TotalAmount:    decimal.Zero,
		BillableAmount: decimal.Zero,
	}
	for i, e := range entries {
		if !from.IsZero() && money.DaysBetween(from, e.WorkDate) < 0 {
			continue
		}
		if !to.IsZero() && money.DaysBetween(e.WorkDate, to) < 0 {
			continue
		}
		if err := pricing.ValidateLine(i, e.Hours, e.HourlyRate); err != nil {
			return Report{}, err
		}
		report.Rows = append(report.Rows, Row{Entry: e, Amount: pricing.Amount(e.Hours, e.HourlyRate)})
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		a, b := report.Rows[i], report.Rows[j]
		if d := money.DaysBetween(b.WorkDate, a.WorkDate); d != 0 {
			return d < 0
		}
		if a.WorkerName != b.WorkerName {
			return a.WorkerName < b.WorkerName
		}
		return a.ID < b.ID
	})

	byWorker := map[string]*WorkerTotal{}
	for _, row := range report.Rows {
		w, ok := byWorker[row.WorkerName]
		if !ok {
			w = &WorkerTotal{Worker: row.WorkerName, Hours: decimal.Zero, Amount: decimal.Zero, BillableAmount: decimal.Zero}
			byWorker[row.WorkerName] = w
		}
		w.Hours = w.Hours.Add(row.Hours)
		w.Amount = w.Amount.Add(row.Amount)
		report.TotalHours = report.TotalHours.Add(row.Hours)
		report.TotalAmount = report.TotalAmount.Add(row.Amount)
		if row.Billable {
			w.BillableAmount = w.BillableAmount.Add(row.Amount)
			report.BillableAmount = report.BillableAmount.Add(row.Amount)
		}
	}
	for _, w := range byWorker {
		report.Workers = append(report.Workers, *w)
	}
	sort.Slice(report.Workers, func(i, j int) bool { return report.Workers[i].Worker < report.Workers[j].Worker })
	report.TotalAmount = money.Round(report.TotalAmount)
	report.BillableAmount = money.Round(report.BillableAmount)
	return report, nil
}
