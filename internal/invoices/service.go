package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/aging"
	"github.com/buildbook/buildbook/internal/money"
	"github.com/buildbook/buildbook/internal/shared"
)

const idempotencyModule = "invoices.payment"

// RepositoryPort defines data access used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListNumbers(ctx context.Context, companyID int64) ([]string, error)
	Get(ctx context.Context, companyID, id int64) (Invoice, error)
	List(ctx context.Context, companyID, clientID int64) ([]Invoice, error)
	ListOpen(ctx context.Context, companyID int64) ([]Invoice, error)
	ListPayments(ctx context.Context, invoiceIDs []int64) (map[int64][]Payment, error)
	CompaniesWithOpenInvoices(ctx context.Context) ([]int64, error)
}

// TxRepository is the transactional subset of the repository.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	ReplaceLines(ctx context.Context, invoiceID int64, lines []LineItem) error
	GetForUpdate(ctx context.Context, companyID, id int64) (Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	UpdateTotals(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, inv Invoice) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	DeleteInvoice(ctx context.Context, companyID, id int64) error
}

// IdempotencyGuard claims request keys. *shared.IdempotencyStore satisfies it.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Notifier delivers a sent invoice to the client.
type Notifier interface {
	InvoiceSent(ctx context.Context, inv Invoice) error
}

// Invalidator drops cached receivable reports for a company.
type Invalidator interface {
	Invalidate(ctx context.Context, companyID int64) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	NumberRetries int
	Location      *time.Location
	Logger        *slog.Logger
}

// Service coordinates invoice persistence around the ledger rules.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyGuard
	notifier    Notifier
	invalidator Invalidator
	retries     int
	loc         *time.Location
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem IdempotencyGuard, notifier Notifier, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		idempotency: idem,
		notifier:    notifier,
		retries:     cfg.NumberRetries,
		loc:         cfg.Location,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if s.retries <= 0 {
		s.retries = 3
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithInvalidator registers the receivables cache to bump on every mutation.
func (s *Service) WithInvalidator(inv Invalidator) {
	s.invalidator = inv
}

func (s *Service) today() time.Time {
	return s.now().In(s.loc)
}

// Create prices the lines and stores a draft invoice under the next free number.
func (s *Service) Create(ctx context.Context, input CreateInput) (Invoice, error) {
	if input.CompanyID == 0 || input.ClientID == 0 {
		return Invoice{}, fmt.Errorf("%w: company and client required", shared.ErrValidation)
	}
	if input.DueDate.IsZero() {
		return Invoice{}, fmt.Errorf("%w: due date required", shared.ErrValidation)
	}
	lines, err := BuildLines(input.Lines)
	if err != nil {
		return Invoice{}, err
	}
	now := s.now()
	issue := input.IssueDate
	if issue.IsZero() {
		issue = money.StartOfDay(s.today())
	}
	draft := Invoice{
		CompanyID:    input.CompanyID,
		ClientID:     input.ClientID,
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		ProjectID:    input.ProjectID,
		IssueDate:    issue,
		DueDate:      input.DueDate,
		Lines:        lines,
		TaxRate:      input.TaxRate,
		StoredStatus: StatusDraft,
		PaymentTerms: input.PaymentTerms,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	draft, err = Derive(draft, nil, s.today())
	if err != nil {
		return Invoice{}, err
	}

	for attempt := 0; attempt < s.retries; attempt++ {
		existing, err := s.repo.ListNumbers(ctx, input.CompanyID)
		if err != nil {
			return Invoice{}, err
		}
		draft.Number = NextNumber(existing)
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.InsertInvoice(ctx, draft)
			if err != nil {
				return err
			}
			draft.ID = id
			return tx.ReplaceLines(ctx, id, draft.Lines)
		})
		if errors.Is(err, ErrNumberConflict) {
			s.logger.Warn("invoice number taken, retrying",
				slog.Int64("company_id", input.CompanyID),
				slog.String("number", draft.Number),
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return Invoice{}, err
		}
		s.invalidate(ctx, input.CompanyID)
		return draft, nil
	}
	return Invoice{}, fmt.Errorf("%w: could not allocate an invoice number after %d attempts", shared.ErrConflict, s.retries)
}

// UpdateLines replaces the lines of a draft and recomputes its totals.
func (s *Service) UpdateLines(ctx context.Context, companyID, id int64, taxRate *decimal.Decimal, inputs []LineInput) (Invoice, error) {
	lines, err := BuildLines(inputs)
	if err != nil {
		return Invoice{}, err
	}
	var updated Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if inv.StoredStatus != StatusDraft {
			return fmt.Errorf("%w: only draft invoices can be edited", shared.ErrInvalidTransition)
		}
		inv.Lines = lines
		if taxRate != nil {
			inv.TaxRate = *taxRate
		}
		inv.UpdatedAt = s.now()
		updated, err = Derive(inv, nil, s.today())
		if err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, updated.Lines); err != nil {
			return err
		}
		return tx.UpdateTotals(ctx, updated)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx, companyID)
	return updated, nil
}

// Get loads one invoice and derives its balance and status.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Invoice{}, err
	}
	derived, err := s.derive(ctx, []Invoice{inv})
	if err != nil {
		return Invoice{}, err
	}
	return derived[0], nil
}

// List returns the company's invoices, filtered on the derived status.
func (s *Service) List(ctx context.Context, companyID int64, filter ListFilter) ([]Invoice, error) {
	invs, err := s.repo.List(ctx, companyID, filter.ClientID)
	if err != nil {
		return nil, err
	}
	derived, err := s.derive(ctx, invs)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(derived))
	for _, inv := range derived {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// ListOutstanding returns invoices with an open balance as of asOf.
func (s *Service) ListOutstanding(ctx context.Context, companyID int64, asOf time.Time) ([]Invoice, error) {
	invs, err := s.repo.ListOpen(ctx, companyID)
	if err != nil {
		return nil, err
	}
	derived, err := s.deriveAt(ctx, invs, asOf)
	if err != nil {
		return nil, err
	}
	out := derived[:0]
	for _, inv := range derived {
		if Outstanding(inv) {
			out = append(out, inv)
		}
	}
	return out, nil
}

// Receivables adapts outstanding invoices to the aging classifier input.
func (s *Service) Receivables(ctx context.Context, companyID int64, asOf time.Time) ([]aging.Receivable, error) {
	invs, err := s.ListOutstanding(ctx, companyID, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]aging.Receivable, len(invs))
	for i, inv := range invs {
		out[i] = aging.Receivable{
			InvoiceID:  inv.ID,
			Number:     inv.Number,
			ClientID:   inv.ClientID,
			ClientName: inv.ClientName,
			DueDate:    inv.DueDate,
			BalanceDue: inv.BalanceDue,
			Status:     string(inv.Status),
		}
	}
	return out, nil
}

// CompaniesWithReceivables lists companies that have invoices which are not
// cancelled or void.
func (s *Service) CompaniesWithReceivables(ctx context.Context) ([]int64, error) {
	return s.repo.CompaniesWithOpenInvoices(ctx)
}

// Send marks a draft as sent and hands it to the notifier.
func (s *Service) Send(ctx context.Context, companyID, id int64) (Invoice, error) {
	inv, err := s.transition(ctx, companyID, id, Send)
	if err != nil {
		return Invoice{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.InvoiceSent(ctx, inv); err != nil {
			s.logger.Error("enqueue invoice delivery", slog.Any("error", err),
				slog.Int64("invoice_id", inv.ID), slog.String("number", inv.Number))
		}
	}
	return inv, nil
}

// MarkViewed records the client view signal.
func (s *Service) MarkViewed(ctx context.Context, companyID, id int64) (Invoice, error) {
	return s.transition(ctx, companyID, id, MarkViewed)
}

// Cancel terminates an unpaid invoice.
func (s *Service) Cancel(ctx context.Context, companyID, id int64) (Invoice, error) {
	return s.transition(ctx, companyID, id, Cancel)
}

// Void terminates an unpaid invoice, including a cancelled one.
func (s *Service) Void(ctx context.Context, companyID, id int64) (Invoice, error) {
	return s.transition(ctx, companyID, id, Void)
}

func (s *Service) transition(ctx context.Context, companyID, id int64, apply func(*Invoice, time.Time) error) (Invoice, error) {
	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, id)
		if err != nil {
			return err
		}
		inv, err = Derive(inv, payments, s.today())
		if err != nil {
			return err
		}
		now := s.now()
		if err := apply(&inv, now); err != nil {
			return err
		}
		inv.UpdatedAt = now
		if err := tx.UpdateStatus(ctx, inv); err != nil {
			return err
		}
		out, err = Derive(inv, payments, s.today())
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx, companyID)
	return out, nil
}

// RecordPayment adds a payment and returns the invoice with its new derived
// status. A key repeated on the same invoice returns the current invoice
// unchanged; the same key on another invoice is a separate payment.
func (s *Service) RecordPayment(ctx context.Context, companyID, id int64, input PaymentInput) (Invoice, error) {
	if !input.Amount.IsPositive() {
		return Invoice{}, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	var key string
	if input.IdempotencyKey != "" && s.idempotency != nil {
		key = fmt.Sprintf("%d:%d:%s", companyID, id, input.IdempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.Get(ctx, companyID, id)
			}
			return Invoice{}, err
		}
	}
	paidOn := input.PaidOn
	if paidOn.IsZero() {
		paidOn = money.StartOfDay(s.today())
	}

	var out Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if inv.StoredStatus == StatusDraft || inv.StoredStatus.Terminal() {
			return fmt.Errorf("%w: payments require a sent invoice (status %s)", shared.ErrInvalidTransition, inv.StoredStatus)
		}
		payment := Payment{
			InvoiceID:      id,
			Amount:         money.Round(input.Amount),
			PaidOn:         paidOn,
			Method:         input.Method,
			Reference:      input.Reference,
			IdempotencyKey: input.IdempotencyKey,
			CreatedAt:      s.now(),
		}
		if _, err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, id)
		if err != nil {
			return err
		}
		out, err = Derive(inv, payments, s.today())
		return err
	})
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		return s.Get(ctx, companyID, id)
	}
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Invoice{}, err
	}
	s.invalidate(ctx, companyID)
	return out, nil
}

// Delete removes an invoice and its lines. Invoices with payments are kept.
func (s *Service) Delete(ctx context.Context, companyID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, companyID, id); err != nil {
			return err
		}
		payments, err := tx.ListPayments(ctx, id)
		if err != nil {
			return err
		}
		if len(payments) > 0 {
			return fmt.Errorf("%w: invoice has recorded payments", shared.ErrInvalidTransition)
		}
		return tx.DeleteInvoice(ctx, companyID, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, companyID)
	return nil
}

func (s *Service) derive(ctx context.Context, invs []Invoice) ([]Invoice, error) {
	return s.deriveAt(ctx, invs, s.today())
}

func (s *Service) deriveAt(ctx context.Context, invs []Invoice, today time.Time) ([]Invoice, error) {
	if len(invs) == 0 {
		return invs, nil
	}
	ids := make([]int64, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
	}
	payments, err := s.repo.ListPayments(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, len(invs))
	for i, inv := range invs {
		derived, err := Derive(inv, payments[inv.ID], today)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.Number, err)
		}
		out[i] = derived
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, companyID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, companyID); err != nil {
		s.logger.Warn("invalidate receivables cache", slog.Any("error", err), slog.Int64("company_id", companyID))
	}
}
