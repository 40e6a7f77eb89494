package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/shared"
)

// RepositoryPort defines data access used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Expense, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Expense, error)
}

// TxRepository is the transactional subset of the repository.
type TxRepository interface {
	Insert(ctx context.Context, e Expense) (int64, error)
	GetForUpdate(ctx context.Context, companyID, id int64) (Expense, error)
	UpdateStatus(ctx context.Context, e Expense) error
	MarkInvoiced(ctx context.Context, companyID int64, ids []int64, invoiceID int64) error
}

// Service records expenses and reports on them.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger, loc *time.Location) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, logger: logger, loc: loc, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create validates and stores a new expense.
func (s *Service) Create(ctx context.Context, input CreateInput) (Expense, error) {
	if input.CompanyID == 0 {
		return Expense{}, fmt.Errorf("%w: company required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if !input.Category.Valid() {
		return Expense{}, fmt.Errorf("%w: unknown category %q", shared.ErrValidation, input.Category)
	}
	if input.PaymentMethod == "" {
		input.PaymentMethod = MethodOther
	}
	if !input.PaymentMethod.Valid() {
		return Expense{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, input.PaymentMethod)
	}
	if input.PaymentStatus == "" {
		input.PaymentStatus = StatusPending
	}
	if !input.PaymentStatus.Valid() {
		return Expense{}, fmt.Errorf("%w: unknown payment status %q", shared.ErrValidation, input.PaymentStatus)
	}
	if input.MarkupPercentage != nil {
		if err := money.ValidatePercentage("markup_percentage", *input.MarkupPercentage); err != nil {
			return Expense{}, err
		}
	}
	date := input.ExpenseDate
	if date.IsZero() {
		date = money.StartOfDay(s.now().In(s.loc))
	}
	now := s.now()
	e := Expense{
		CompanyID:        input.CompanyID,
		ProjectID:        input.ProjectID,
		Vendor:           strings.TrimSpace(input.Vendor),
		Description:      strings.TrimSpace(input.Description),
		Amount:           money.Round(input.Amount),
		Category:         input.Category,
		PaymentMethod:    input.PaymentMethod,
		PaymentStatus:    input.PaymentStatus,
		ExpenseDate:      date,
		BillableToClient: input.BillableToClient,
		MarkupPercentage: input.MarkupPercentage,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if e.PaymentStatus == StatusPaid {
		e.PaidAt = &now
	}
	if _, err := BillableAmount(e); err != nil {
		return Expense{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, e)
		e.ID = id
		return err
	})
	if err != nil {
		return Expense{}, err
	}
	return decorate(e)
}

// Get loads one expense.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Expense, error) {
	e, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Expense{}, err
	}
	return decorate(e)
}

// List returns the company's expenses matching filter.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Expense, error) {
	rows, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Expense, 0, len(rows))
	for _, e := range rows {
		d, err := decorate(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SetStatus changes the payment status of one expense.
func (s *Service) SetStatus(ctx context.Context, companyID, id int64, status PaymentStatus) (Expense, error) {
	var out Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := SetPaymentStatus(&e, status, now); err != nil {
			return err
		}
		e.UpdatedAt = now
		out = e
		return tx.UpdateStatus(ctx, e)
	})
	if err != nil {
		return Expense{}, err
	}
	s.logger.Info("expense status changed", slog.Int64("expense_id", id), slog.String("status", string(status)))
	return decorate(out)
}

// MarkInvoiced links billable expenses to the invoice that re-billed them.
func (s *Service) MarkInvoiced(ctx context.Context, companyID, invoiceID int64, ids []int64) error {
	if invoiceID <= 0 || len(ids) == 0 {
		return fmt.Errorf("%w: invoice and expenses required", shared.ErrValidation)
	}
	ids = uniqueIDs(ids)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range ids {
			e, err := tx.GetForUpdate(ctx, companyID, id)
			if err != nil {
				return err
			}
			if !e.BillableToClient {
				return fmt.Errorf("%w: expense %d is not billable", shared.ErrValidation, id)
			}
			if e.Invoiced || e.PaymentStatus == StatusCancelled {
				return fmt.Errorf("%w: expense %d cannot be invoiced", shared.ErrInvalidTransition, id)
			}
		}
		return tx.MarkInvoiced(ctx, companyID, ids, invoiceID)
	})
}

// Summary totals the expenses matching filter.
func (s *Service) Summary(ctx context.Context, companyID int64, filter ListFilter) (Summary, error) {
	rows, err := s.repo.List(ctx, companyID, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(rows)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func decorate(e Expense) (Expense, error) {
	billed, err := BillableAmount(e)
	if err != nil {
		return Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.BillableAmount = billed
	e.CategoryLabel = e.Category.Label()
	return e, nil
}
