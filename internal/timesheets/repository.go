package timesheets

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and writes timesheet_entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores an entry.
func (r *Repository) Insert(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO timesheet_entries (company_id, project_id, worker_name, work_date, hours, hourly_rate, billable, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.CompanyID, e.ProjectID, e.WorkerName, e.WorkDate, e.Hours, e.HourlyRate, e.Billable, e.Notes,
	).Scan(&id)
	return id, err
}

// List returns entries joined with their project name.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.company_id, t.project_id, COALESCE(p.name, ''), t.worker_name, t.work_date,
			t.hours, t.hourly_rate, t.billable, t.notes
		FROM timesheet_entries t
		LEFT JOIN projects p ON p.id = t.project_id
		WHERE t.company_id = $1
			AND ($2::bigint = 0 OR t.project_id = $2)
			AND ($3::date IS NULL OR t.work_date >= $3)
			AND ($4::date IS NULL OR t.work_date <= $4)
		ORDER BY t.work_date, t.worker_name, t.id`,
		f.CompanyID, f.ProjectID, nullableDate(f.From), nullableDate(f.To))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.CompanyID, &e.ProjectID, &e.ProjectName, &e.WorkerName, &e.WorkDate,
			&e.Hours, &e.HourlyRate, &e.Billable, &e.Notes)
		return e, err
	})
}

func nullableDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
