package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/shared"
)

// RepositoryPort defines data access used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetQuote(ctx context.Context, companyID, id int64) (Quote, error)
	ListQuotes(ctx context.Context, companyID int64) ([]Quote, error)
	GetTemplate(ctx context.Context, companyID, id int64) (Template, error)
	ListTemplates(ctx context.Context, companyID int64) ([]Template, error)
}

// TxRepository is the transactional subset of the repository.
type TxRepository interface {
	InsertQuote(ctx context.Context, q Quote) (int64, error)
	UpdateQuote(ctx context.Context, q Quote) error
	ReplaceItems(ctx context.Context, quoteID int64, items []LineItem) error
	GetQuoteForUpdate(ctx context.Context, companyID, id int64) (Quote, error)
	GetTemplate(ctx context.Context, companyID, id int64) (Template, error)
	IncrementTemplateUse(ctx context.Context, companyID, id int64) error
	InsertTemplate(ctx context.Context, t Template) (int64, error)
}

// Service coordinates quote persistence around the pricing engine.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create prices and stores a draft quote.
func (s *Service) Create(ctx context.Context, h Header, inputs []ItemInput) (Quote, error) {
	if h.CompanyID == 0 || h.ClientID == 0 {
		return Quote{}, fmt.Errorf("%w: company and client required", shared.ErrValidation)
	}
	if strings.TrimSpace(h.Title) == "" {
		return Quote{}, fmt.Errorf("%w: title required", shared.ErrValidation)
	}
	items, err := BuildItems(inputs)
	if err != nil {
		return Quote{}, err
	}
	taxRate := decimal.Zero
	if h.TaxRate != nil {
		taxRate = *h.TaxRate
	}
	q, err := Price(Quote{
		CompanyID:  h.CompanyID,
		ClientID:   h.ClientID,
		ClientName: h.ClientName,
		ProjectID:  h.ProjectID,
		Title:      strings.TrimSpace(h.Title),
		Status:     StatusDraft,
		ValidUntil: h.ValidUntil,
		Notes:      h.Notes,
		TaxRate:    taxRate,
		Items:      items,
	})
	if err != nil {
		return Quote{}, err
	}
	return s.insert(ctx, q)
}

// CreateFromTemplate instantiates a template into a new quote and counts
// the use, both in one transaction.
func (s *Service) CreateFromTemplate(ctx context.Context, templateID int64, h Header) (Quote, error) {
	if h.CompanyID == 0 || h.ClientID == 0 {
		return Quote{}, fmt.Errorf("%w: company and client required", shared.ErrValidation)
	}
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTemplate(ctx, h.CompanyID, templateID)
		if err != nil {
			return err
		}
		q, err := Instantiate(t, h)
		if err != nil {
			return err
		}
		now := s.now()
		q.CreatedAt, q.UpdatedAt = now, now
		id, err := tx.InsertQuote(ctx, q)
		if err != nil {
			return err
		}
		q.ID = id
		if err := tx.ReplaceItems(ctx, id, q.Items); err != nil {
			return err
		}
		out = q
		return tx.IncrementTemplateUse(ctx, h.CompanyID, templateID)
	})
	if err != nil {
		return Quote{}, err
	}
	s.logger.Info("quote created from template",
		slog.Int64("quote_id", out.ID), slog.Int64("template_id", templateID), slog.Int("items", len(out.Items)))
	return out, nil
}

func (s *Service) insert(ctx context.Context, q Quote) (Quote, error) {
	now := s.now()
	q.CreatedAt, q.UpdatedAt = now, now
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertQuote(ctx, q)
		if err != nil {
			return err
		}
		q.ID = id
		return tx.ReplaceItems(ctx, id, q.Items)
	})
	if err != nil {
		return Quote{}, err
	}
	return q, nil
}

// UpdateItems replaces the lines of a draft quote and reprices it.
func (s *Service) UpdateItems(ctx context.Context, companyID, id int64, taxRate *decimal.Decimal, inputs []ItemInput) (Quote, error) {
	items, err := BuildItems(inputs)
	if err != nil {
		return Quote{}, err
	}
	return s.mutate(ctx, companyID, id, func(q *Quote) error {
		if q.Status != StatusDraft {
			return fmt.Errorf("%w: only draft quotes can be edited", shared.ErrInvalidTransition)
		}
		q.Items = items
		if taxRate != nil {
			q.TaxRate = *taxRate
		}
		return nil
	})
}

// Reorder renumbers the quote's lines in the given order.
func (s *Service) Reorder(ctx context.Context, companyID, id int64, orderedIDs []uuid.UUID) (Quote, error) {
	return s.mutate(ctx, companyID, id, func(q *Quote) error {
		items, err := Reorder(q.Items, orderedIDs)
		if err != nil {
			return err
		}
		q.Items = items
		return nil
	})
}

// SetStatus moves a quote through draft, sent, accepted and declined.
func (s *Service) SetStatus(ctx context.Context, companyID, id int64, to Status) (Quote, error) {
	return s.mutate(ctx, companyID, id, func(q *Quote) error {
		allowed := map[Status][]Status{
			StatusDraft: {StatusSent},
			StatusSent:  {StatusAccepted, StatusDeclined, StatusDraft},
		}
		for _, next := range allowed[q.Status] {
			if next == to {
				q.Status = to
				return nil
			}
		}
		return fmt.Errorf("%w: quote %s -> %s", shared.ErrInvalidTransition, q.Status, to)
	})
}

func (s *Service) mutate(ctx context.Context, companyID, id int64, apply func(*Quote) error) (Quote, error) {
	var out Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetQuoteForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := apply(&q); err != nil {
			return err
		}
		q, err = Price(q)
		if err != nil {
			return err
		}
		q.UpdatedAt = s.now()
		if err := tx.ReplaceItems(ctx, id, q.Items); err != nil {
			return err
		}
		out = q
		return tx.UpdateQuote(ctx, q)
	})
	if err != nil {
		return Quote{}, err
	}
	return out, nil
}

// Get loads a quote and reprices it from its stored lines.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Quote, error) {
	q, err := s.repo.GetQuote(ctx, companyID, id)
	if err != nil {
		return Quote{}, err
	}
	return Price(q)
}

// List returns the company's quotes.
func (s *Service) List(ctx context.Context, companyID int64) ([]Quote, error) {
	qs, err := s.repo.ListQuotes(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for i, q := range qs {
		priced, err := Price(q)
		if err != nil {
			return nil, fmt.Errorf("quote %d: %w", q.ID, err)
		}
		qs[i] = priced
	}
	return qs, nil
}

// CreateTemplate validates and stores a template with fresh ids.
func (s *Service) CreateTemplate(ctx context.Context, t Template) (Template, error) {
	if err := ValidateTemplate(t); err != nil {
		return Template{}, err
	}
	t.Name = strings.TrimSpace(t.Name)
	t.UseCount = 0
	sections := make([]TemplateSection, len(t.Sections))
	for i, sec := range t.Sections {
		sec.ID = uuid.New()
		sec.SortOrder = i
		sec.Items = append([]TemplateItem(nil), sec.Items...)
		for j := range sec.Items {
			sec.Items[j].ID = uuid.New()
		}
		sections[i] = sec
	}
	t.Sections = sections
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTemplate(ctx, t)
		t.ID = id
		return err
	})
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

// GetTemplate loads one template.
func (s *Service) GetTemplate(ctx context.Context, companyID, id int64) (Template, error) {
	return s.repo.GetTemplate(ctx, companyID, id)
}

// ListTemplates returns the company's templates.
func (s *Service) ListTemplates(ctx context.Context, companyID int64) ([]Template, error) {
	return s.repo.ListTemplates(ctx, companyID)
}
