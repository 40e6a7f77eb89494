package timesheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/pricing"
	"github.com/buildbook/buildbook/internal/shared"
)

// RepositoryPort defines data access used by Service.
type RepositoryPort interface {
	Insert(ctx context.Context, e Entry) (int64, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Filter selects entries for a report.
type Filter struct {
	CompanyID int64
	ProjectID int64
	From      time.Time
	To        time.Time
}

// Service logs hours and builds reports.
type Service struct {
	repo RepositoryPort
	loc  *time.Location
}

// NewService builds Service.
func NewService(repo RepositoryPort, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc}
}

// Log stores one timesheet entry.
func (s *Service) Log(ctx context.Context, e Entry) (Entry, error) {
	e.WorkerName = strings.TrimSpace(e.WorkerName)
	if e.CompanyID == 0 || e.ProjectID == 0 || e.WorkerName == "" {
		return Entry{}, fmt.Errorf("%w: company, project and worker required", shared.ErrValidation)
	}
	if e.WorkDate.IsZero() {
		return Entry{}, fmt.Errorf("%w: work date required", shared.ErrValidation)
	}
	if err := pricing.ValidateLine(0, e.Hours, e.HourlyRate); err != nil {
		return Entry{}, err
	}
	e.WorkDate = money.StartOfDay(e.WorkDate.In(s.loc))
	id, err := s.repo.Insert(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	e.ID = id
	return e, nil
}

// Report builds the priced report for the filter's range.
func (s *Service) Report(ctx context.Context, f Filter) (Report, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Report{}, fmt.Errorf("%w: range ends before it starts", shared.ErrValidation)
	}
	entries, err := s.repo.List(ctx, f)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(entries, f.From, f.To)
}
