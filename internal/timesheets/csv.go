package timesheets

import (
	"io"

	"github.com/buildbook/buildbook/internal/export"
)

// WriteCSV writes one line per report row.
func WriteCSV(w io.Writer, report Report) error {
	cw := export.NewWriter(w)
	if err := cw.Header("Date", "Worker", "Project", "Hours", "Rate", "Amount", "Billable"); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := cw.Row(
			export.Date(row.WorkDate),
			export.Text(row.WorkerName),
			export.Text(row.ProjectName),
			export.Fixed(row.Hours, 2),
			export.Money(row.HourlyRate),
			export.Money(row.Amount),
			export.Bool(row.Billable),
		); err != nil {
			return err
		}
	}
	return cw.Flush()
}
