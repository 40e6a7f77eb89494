package quotes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/shared"
)

// Repository provides PostgreSQL backed persistence for quotes and templates.
// Template sections are stored as a JSONB document.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	q db.Querier
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const quoteColumns = `
	id, company_id, client_id, client_name, project_id, template_id, title, status,
	valid_until, notes, tax_rate, subtotal, tax_amount, total_amount, optional_total,
	created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	var status string
	err := row.Scan(
		&q.ID, &q.CompanyID, &q.ClientID, &q.ClientName, &q.ProjectID, &q.TemplateID, &q.Title, &status,
		&q.ValidUntil, &q.Notes, &q.TaxRate, &q.Subtotal, &q.TaxAmount, &q.TotalAmount, &q.OptionalTotal,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return Quote{}, fmt.Errorf("quote: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Quote{}, err
	}
	q.Status = Status(status)
	return q, nil
}

func loadItems(ctx context.Context, q db.Querier, quotes []Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	ids := make([]int64, len(quotes))
	index := make(map[int64]int, len(quotes))
	for i, qt := range quotes {
		ids[i] = qt.ID
		index[qt.ID] = i
	}
	rows, err := q.Query(ctx, `
		SELECT quote_id, id, item_type, description, quantity, unit, unit_price, total_price,
			is_taxable, is_optional, category, notes, sort_order
		FROM quote_line_items
		WHERE quote_id = ANY($1)
		ORDER BY quote_id, sort_order`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		var quoteID int64
		var itemType string
		if err := rows.Scan(&quoteID, &it.ID, &itemType, &it.Description, &it.Quantity, &it.Unit, &it.UnitPrice, &it.TotalPrice,
			&it.IsTaxable, &it.IsOptional, &it.Category, &it.Notes, &it.SortOrder); err != nil {
			return err
		}
		it.ItemType = ItemType(itemType)
		i := index[quoteID]
		quotes[i].Items = append(quotes[i].Items, it)
	}
	return rows.Err()
}

// GetQuote retrieves a quote with its lines.
func (r *Repository) GetQuote(ctx context.Context, companyID, id int64) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		return Quote{}, err
	}
	out := []Quote{q}
	if err := loadItems(ctx, r.pool, out); err != nil {
		return Quote{}, err
	}
	return out[0], nil
}

// ListQuotes returns the company's quotes, newest first.
func (r *Repository) ListQuotes(ctx context.Context, companyID int64) ([]Quote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE company_id = $1 ORDER BY created_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	quotes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Quote, error) {
		return scanQuote(row)
	})
	if err != nil {
		return nil, err
	}
	return quotes, loadItems(ctx, r.pool, quotes)
}

const templateColumns = `id, company_id, name, description, tax_rate, use_count, sections, created_at, updated_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.CompanyID, &t.Name, &t.Description, &t.TaxRate, &t.UseCount, &t.Sections, &t.CreatedAt, &t.UpdatedAt)
	if db.IsNoRows(err) {
		return Template{}, fmt.Errorf("quote template: %w", shared.ErrNotFound)
	}
	return t, err
}

// GetTemplate retrieves one template.
func (r *Repository) GetTemplate(ctx context.Context, companyID, id int64) (Template, error) {
	return scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM quote_templates WHERE company_id = $1 AND id = $2`, companyID, id))
}

// ListTemplates returns templates, most used first.
func (r *Repository) ListTemplates(ctx context.Context, companyID int64) ([]Template, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM quote_templates WHERE company_id = $1 ORDER BY use_count DESC, name`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Template, error) {
		return scanTemplate(row)
	})
}

func (t *txRepo) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO quotes (
			company_id, client_id, client_name, project_id, template_id, title, status,
			valid_until, notes, tax_rate, subtotal, tax_amount, total_amount, optional_total,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		q.CompanyID, q.ClientID, q.ClientName, q.ProjectID, q.TemplateID, q.Title, string(q.Status),
		q.ValidUntil, q.Notes, q.TaxRate, q.Subtotal, q.TaxAmount, q.TotalAmount, q.OptionalTotal,
		q.CreatedAt, q.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateQuote(ctx context.Context, q Quote) error {
	_, err := t.q.Exec(ctx, `
		UPDATE quotes
		SET status = $3, tax_rate = $4, subtotal = $5, tax_amount = $6, total_amount = $7,
			optional_total = $8, updated_at = $9
		WHERE company_id = $1 AND id = $2`,
		q.CompanyID, q.ID, string(q.Status), q.TaxRate, q.Subtotal, q.TaxAmount, q.TotalAmount,
		q.OptionalTotal, q.UpdatedAt)
	return err
}

func (t *txRepo) ReplaceItems(ctx context.Context, quoteID int64, items []LineItem) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM quote_line_items WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	for _, it := range items {
		id := it.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := t.q.Exec(ctx, `
			INSERT INTO quote_line_items (
				id, quote_id, item_type, description, quantity, unit, unit_price, total_price,
				is_taxable, is_optional, category, notes, sort_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			id, quoteID, string(it.ItemType), it.Description, it.Quantity, it.Unit, it.UnitPrice, it.TotalPrice,
			it.IsTaxable, it.IsOptional, it.Category, it.Notes, it.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetQuoteForUpdate(ctx context.Context, companyID, id int64) (Quote, error) {
	q, err := scanQuote(t.q.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Quote{}, err
	}
	out := []Quote{q}
	if err := loadItems(ctx, t.q, out); err != nil {
		return Quote{}, err
	}
	return out[0], nil
}

func (t *txRepo) GetTemplate(ctx context.Context, companyID, id int64) (Template, error) {
	return scanTemplate(t.q.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM quote_templates WHERE company_id = $1 AND id = $2 FOR SHARE`, companyID, id))
}

func (t *txRepo) IncrementTemplateUse(ctx context.Context, companyID, id int64) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE quote_templates SET use_count = use_count + 1 WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("quote template: %w", shared.ErrNotFound)
	}
	return nil
}

func (t *txRepo) InsertTemplate(ctx context.Context, tpl Template) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO quote_templates (company_id, name, description, tax_rate, use_count, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
		RETURNING id`,
		tpl.CompanyID, tpl.Name, tpl.Description, tpl.TaxRate, tpl.Sections, tpl.CreatedAt, tpl.UpdatedAt,
	).Scan(&id)
	if db.IsUniqueViolation(err, "") {
		return 0, fmt.Errorf("quote template %q: %w", tpl.Name, shared.ErrConflict)
	}
	return id, err
}
