package expenses

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/shared"
)

// Repository provides PostgreSQL backed persistence for expenses.
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

const expenseColumns = `
	id, company_id, project_id, vendor, description, amount, category,
	payment_method, payment_status, expense_date, billable_to_client,
	markup_percentage, invoiced, invoice_id, paid_at, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	var category, method, status string
	var markup decimal.NullDecimal
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.ProjectID, &e.Vendor, &e.Description, &e.Amount, &category,
		&method, &status, &e.ExpenseDate, &e.BillableToClient,
		&markup, &e.Invoiced, &e.InvoiceID, &e.PaidAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return Expense{}, fmt.Errorf("expense: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Expense{}, err
	}
	e.Category = Category(category)
	e.PaymentMethod = PaymentMethod(method)
	e.PaymentStatus = PaymentStatus(status)
	if markup.Valid {
		e.MarkupPercentage = &markup.Decimal
	}
	return e, nil
}

// Get retrieves one expense.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE company_id = $1 AND id = $2`, companyID, id))
}

// List returns expenses newest first.
func (r *Repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Expense, error) {
	where := []string{"company_id = $1"}
	args := []any{companyID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.ProjectID > 0 {
		add("project_id = ?", filter.ProjectID)
	}
	if filter.Status != "" {
		add("payment_status = ?", string(filter.Status))
	}
	if filter.Billable != nil {
		add("billable_to_client = ?", *filter.Billable)
	}
	if filter.Uninvoiced {
		where = append(where, "NOT invoiced")
	}
	if !filter.From.IsZero() {
		add("expense_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("expense_date <= ?", filter.To)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+strings.Join(where, " AND ")+
			` ORDER BY expense_date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Expense, error) {
		return scanExpense(row)
	})
}

func (t *txRepo) Insert(ctx context.Context, e Expense) (int64, error) {
	var markup decimal.NullDecimal
	if e.MarkupPercentage != nil {
		markup = decimal.NewNullDecimal(*e.MarkupPercentage)
	}
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO expenses (
			company_id, project_id, vendor, description, amount, category,
			payment_method, payment_status, expense_date, billable_to_client,
			markup_percentage, paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		e.CompanyID, e.ProjectID, e.Vendor, e.Description, e.Amount, string(e.Category),
		string(e.PaymentMethod), string(e.PaymentStatus), e.ExpenseDate, e.BillableToClient,
		markup, e.PaidAt, e.CreatedAt, e.UpdatedAt,
	).Scan(&id)
	return id, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, companyID, id int64) (Expense, error) {
	return scanExpense(t.q.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id))
}

func (t *txRepo) UpdateStatus(ctx context.Context, e Expense) error {
	_, err := t.q.Exec(ctx, `
		UPDATE expenses SET payment_status = $3, paid_at = $4, updated_at = $5
		WHERE company_id = $1 AND id = $2`,
		e.CompanyID, e.ID, string(e.PaymentStatus), e.PaidAt, e.UpdatedAt)
	return err
}

func (t *txRepo) MarkInvoiced(ctx context.Context, companyID int64, ids []int64, invoiceID int64) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE expenses SET invoiced = TRUE, invoice_id = $3, updated_at = now()
		WHERE company_id = $1 AND id = ANY($2)`, companyID, ids, invoiceID)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("expense: %w", shared.ErrNotFound)
	}
	return nil
}
