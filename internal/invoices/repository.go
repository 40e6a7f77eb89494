package invoices

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buildbook/buildbook/internal/platform/db"
	"github.com/buildbook/buildbook/internal/shared"
)

const numberConstraint = "uq_invoices_company_number"

// Repository provides PostgreSQL backed persistence for invoices.
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

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const invoiceColumns = `
	id, company_id, client_id, client_name, client_email, project_id, number,
	issue_date, due_date, subtotal, tax_rate, tax_amount, total, status,
	payment_terms, notes, sent_at, viewed_at, cancelled_at, voided_at,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.ClientID, &inv.ClientName, &inv.ClientEmail, &inv.ProjectID, &inv.Number,
		&inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.Total, &status,
		&inv.PaymentTerms, &inv.Notes, &inv.SentAt, &inv.ViewedAt, &inv.CancelledAt, &inv.VoidedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if db.IsNoRows(err) {
		return Invoice{}, fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.StoredStatus = Status(status)
	inv.Status = inv.StoredStatus
	return inv, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func loadLines(ctx context.Context, q db.Querier, invs []Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	ids := make([]int64, len(invs))
	index := make(map[int64]int, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
		index[inv.ID] = i
	}
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, description, quantity, rate, amount, position
		FROM invoice_lines
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l LineItem
		var invoiceID int64
		if err := rows.Scan(&l.ID, &invoiceID, &l.Description, &l.Quantity, &l.Rate, &l.Amount, &l.Position); err != nil {
			return err
		}
		i := index[invoiceID]
		invs[i].Lines = append(invs[i].Lines, l)
	}
	return rows.Err()
}

// ListNumbers returns every invoice number issued by the company.
func (r *Repository) ListNumbers(ctx context.Context, companyID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT number FROM invoices WHERE company_id = $1`, companyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Get retrieves an invoice with its lines.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 AND id = $2`, companyID, id))
	if err != nil {
		return Invoice{}, err
	}
	out := []Invoice{inv}
	if err := loadLines(ctx, r.pool, out); err != nil {
		return Invoice{}, err
	}
	return out[0], nil
}

// List returns the company's invoices, newest first, optionally for one client.
func (r *Repository) List(ctx context.Context, companyID, clientID int64) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = $1`
	args := []any{companyID}
	if clientID > 0 {
		query += ` AND client_id = $2`
		args = append(args, clientID)
	}
	query += ` ORDER BY issue_date DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	invs, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	return invs, loadLines(ctx, r.pool, invs)
}

// ListOpen returns invoices that are neither cancelled nor void; paid ones are
// filtered after derivation.
func (r *Repository) ListOpen(ctx context.Context, companyID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE company_id = $1 AND status NOT IN ('cancelled', 'void')
		ORDER BY due_date, id`, companyID)
	if err != nil {
		return nil, err
	}
	invs, err := collectInvoices(rows)
	if err != nil {
		return nil, err
	}
	return invs, loadLines(ctx, r.pool, invs)
}

// ListPayments returns payments grouped by invoice.
func (r *Repository) ListPayments(ctx context.Context, invoiceIDs []int64) (map[int64][]Payment, error) {
	out := make(map[int64][]Payment, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, reference, idempotency_key, created_at
		FROM invoice_payments
		WHERE invoice_id = ANY($1)
		ORDER BY paid_on, id`, invoiceIDs)
	if err != nil {
		return nil, err
	}
	payments, err := collectPayments(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		out[p.InvoiceID] = append(out[p.InvoiceID], p)
	}
	return out, nil
}

// CompaniesWithOpenInvoices lists companies with invoices that are neither
// cancelled nor void.
func (r *Repository) CompaniesWithOpenInvoices(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT company_id FROM invoices WHERE status NOT IN ('cancelled', 'void') ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var key *string
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaidOn, &p.Method, &p.Reference, &key, &p.CreatedAt); err != nil {
			return nil, err
		}
		if key != nil {
			p.IdempotencyKey = *key
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO invoices (
			company_id, client_id, client_name, client_email, project_id, number,
			issue_date, due_date, subtotal, tax_rate, tax_amount, total, status,
			payment_terms, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		inv.CompanyID, inv.ClientID, inv.ClientName, inv.ClientEmail, inv.ProjectID, inv.Number,
		inv.IssueDate, inv.DueDate, inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, string(inv.StoredStatus),
		inv.PaymentTerms, inv.Notes, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&id)
	if db.IsUniqueViolation(err, numberConstraint) {
		return 0, ErrNumberConflict
	}
	return id, err
}

func (t *txRepo) ReplaceLines(ctx context.Context, invoiceID int64, lines []LineItem) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, description, quantity, rate, amount, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			invoiceID, l.Description, l.Quantity, l.Rate, l.Amount, l.Position); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, companyID, id int64) (Invoice, error) {
	inv, err := scanInvoice(t.q.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 AND id = $2 FOR UPDATE`, companyID, id))
	if err != nil {
		return Invoice{}, err
	}
	out := []Invoice{inv}
	if err := loadLines(ctx, t.q, out); err != nil {
		return Invoice{}, err
	}
	return out[0], nil
}

func (t *txRepo) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := t.q.Query(ctx, `
		SELECT id, invoice_id, amount, paid_on, method, reference, idempotency_key, created_at
		FROM invoice_payments
		WHERE invoice_id = $1
		ORDER BY paid_on, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (t *txRepo) UpdateTotals(ctx context.Context, inv Invoice) error {
	_, err := t.q.Exec(ctx, `
		UPDATE invoices
		SET subtotal = $3, tax_rate = $4, tax_amount = $5, total = $6, updated_at = $7
		WHERE company_id = $1 AND id = $2`,
		inv.CompanyID, inv.ID, inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, inv.UpdatedAt)
	return err
}

func (t *txRepo) UpdateStatus(ctx context.Context, inv Invoice) error {
	if !inv.StoredStatus.Stored() {
		return fmt.Errorf("invoices: status %s is derived and cannot be stored", inv.StoredStatus)
	}
	_, err := t.q.Exec(ctx, `
		UPDATE invoices
		SET status = $3, sent_at = $4, viewed_at = $5, cancelled_at = $6, voided_at = $7, updated_at = $8
		WHERE company_id = $1 AND id = $2`,
		inv.CompanyID, inv.ID, string(inv.StoredStatus), inv.SentAt, inv.ViewedAt, inv.CancelledAt, inv.VoidedAt, inv.UpdatedAt)
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var key *string
	if p.IdempotencyKey != "" {
		key = &p.IdempotencyKey
	}
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO invoice_payments (invoice_id, amount, paid_on, method, reference, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.InvoiceID, p.Amount, p.PaidOn, p.Method, p.Reference, key, p.CreatedAt).Scan(&id)
	if db.IsUniqueViolation(err, "uq_invoice_payments_invoice_key") {
		return 0, fmt.Errorf("payment: %w", shared.ErrIdempotencyConflict)
	}
	return id, err
}

func (t *txRepo) DeleteInvoice(ctx context.Context, companyID, id int64) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM invoices WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice: %w", shared.ErrNotFound)
	}
	return nil
}
