package timesheets

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/buildbook/buildbook/internal/shared"
)

func day(d int) time.Time {
	return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC)
}

func entry(id int64, worker string, date time.Time, hours, rate string, billable bool) Entry {
	return Entry{
		ID: id, CompanyID: 1, ProjectID: 3, ProjectName: `Smith "Garage"`,
		WorkerName: worker, WorkDate: date,
		Hours: decimal.RequireFromString(hours), HourlyRate: decimal.RequireFromString(rate),
		Billable: billable,
	}
}

func sampleEntries() []Entry {
	return []Entry{
		entry(1, "Rosa", day(3), "8", "42.50", true),
		entry(2, "Ali", day(3), "7.5", "38", false),
		entry(3, "Ali", day(1), "4.25", "38", true),
		entry(4, "Rosa", day(9), "2", "42.50", true),
	}
}

func TestBuildReport(t *testing.T) {
	report, err := BuildReport(sampleEntries(), day(1), day(3))
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)
	require.Equal(t, []int64{3, 2, 1}, []int64{report.Rows[0].ID, report.Rows[1].ID, report.Rows[2].ID})
	require.Equal(t, "161.50", report.Rows[0].Amount.StringFixed(2))
	require.Equal(t, "19.75", report.TotalHours.StringFixed(2))
	require.Equal(t, "786.50", report.TotalAmount.StringFixed(2))
	require.Equal(t, "501.50", report.BillableAmount.StringFixed(2))

	require.Len(t, report.Workers, 2)
	require.Equal(t, "Ali", report.Workers[0].Worker)
	require.Equal(t, "11.75", report.Workers[0].Hours.StringFixed(2))
	require.Equal(t, "161.50", report.Workers[0].BillableAmount.StringFixed(2))

	open, err := BuildReport(sampleEntries(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, open.Rows, 4)
}

func TestBuildReportRejectsNegativeHours(t *testing.T) {
	entries := sampleEntries()
	entries[2].Hours = decimal.RequireFromString("-1")
	_, err := BuildReport(entries, time.Time{}, time.Time{})
	var lineErr *shared.InvalidLineItemError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, "quantity", lineErr.Field)
}

func TestWriteCSV(t *testing.T) {
	report, err := BuildReport(sampleEntries()[:2], time.Time{}, time.Time{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))
	require.Equal(t,
		`"Date","Worker","Project","Hours","Rate","Amount","Billable"`+"\n"+
			`"2026-04-03","Ali","Smith ""Garage""",7.50,38.00,285.00,"No"`+"\n"+
			`"2026-04-03","Rosa","Smith ""Garage""",8.00,42.50,340.00,"Yes"`+"\n",
		buf.String())
}

type memoryRepo struct {
	entries []Entry
}

func (m *memoryRepo) Insert(_ context.Context, e Entry) (int64, error) {
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *memoryRepo) List(_ context.Context, f Filter) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.CompanyID == f.CompanyID && (f.ProjectID == 0 || e.ProjectID == f.ProjectID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestHandlerReportCSV(t *testing.T) {
	repo := &memoryRepo{entries: sampleEntries()}
	svc := NewService(repo, time.UTC)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	router := chi.NewRouter()
	router.Route("/companies/{companyID}/timesheets", h.MountRoutes)

	req := httptest.NewRequest(http.MethodPost, "/companies/1/timesheets", strings.NewReader(
		`{"project_id": 3, "worker_name": "Kim", "work_date": "2026-04-02", "hours": "6", "hourly_rate": "40", "billable": true}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/companies/1/timesheets/report?from=2026-04-01&to=2026-04-02&format=csv", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Header().Get("Content-Disposition"), "timesheets-2026-04-01_2026-04-02.csv")
	lines := strings.Split(strings.TrimSuffix(rr.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[2], `"2026-04-02","Kim"`))

	req = httptest.NewRequest(http.MethodGet, "/companies/1/timesheets/report?from=2026-04-05&to=2026-04-01", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
