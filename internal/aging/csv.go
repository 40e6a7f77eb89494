package aging

import (
	"io"

	"github.com/buildbook/buildbook/internal/export"
)

// WriteClientsCSV writes the per-client summary in report order.
func WriteClientsCSV(w io.Writer, report Report) error {
	cw := export.NewWriter(w)
	if err := cw.Header(
		"Client", "Risk", "Invoices", "Oldest Days Overdue",
		"Current", "31-60", "61-90", "90+", "Total Outstanding", "Recommended Action",
	); err != nil {
		return err
	}
	for _, c := range report.Clients {
		if err := cw.Row(
			export.Text(c.ClientName),
			export.Text(string(c.Risk)),
			export.Int(c.InvoiceCount),
			export.Int(c.OldestDaysOverdue),
			export.Money(c.Current),
			export.Money(c.Days31To60),
			export.Money(c.Days61To90),
			export.Money(c.Over90),
			export.Money(c.TotalOutstanding),
			export.Text(c.RecommendedAction),
		); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteInvoicesCSV writes one row per classified invoice.
func WriteInvoicesCSV(w io.Writer, report Report) error {
	cw := export.NewWriter(w)
	if err := cw.Header("Invoice", "Client", "Due Date", "Days Overdue", "Bucket", "Balance Due"); err != nil {
		return err
	}
	for _, row := range report.Invoices {
		if err := cw.Row(
			export.Text(row.Number),
			export.Text(row.ClientName),
			export.Date(row.DueDate),
			export.Int(row.DaysOverdue),
			export.Text(row.Bucket),
			export.Money(row.BalanceDue),
		); err != nil {
			return err
		}
	}
	return cw.Flush()
}
