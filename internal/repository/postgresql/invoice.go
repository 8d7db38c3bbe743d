package postgresql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
)

const invoiceColumns = `
	id, subscription_id, user_id, invoice_number, amount, status, created_at,
	paid_at, payment_method, transaction_id`

type invoiceRepository struct {
	db *database.DB
}

func NewInvoiceRepository(db *database.DB) invoice.InvoiceRepository {
	return &invoiceRepository{db: db}
}

func scanInvoice(row pgx.Row) (invoice.Invoice, error) {
	var inv invoice.Invoice
	err := row.Scan(
		&inv.ID, &inv.SubscriptionID, &inv.UserID, &inv.InvoiceNumber, &inv.Amount, &inv.Status, &inv.CreatedAt,
		&inv.PaidAt, &inv.PaymentMethod, &inv.TransactionID,
	)
	return inv, err
}

func (r *invoiceRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *invoiceRepository) Create(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO invoices (subscription_id, user_id, invoice_number, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING` + invoiceColumns

	created, err := scanInvoice(q.QueryRow(ctx, query,
		inv.SubscriptionID, inv.UserID, inv.InvoiceNumber, inv.Amount, inv.Status,
	))
	if isUniqueViolation(err, "invoices_invoice_number_key") {
		return invoice.Invoice{}, invoice.ErrInvoiceNumberTaken
	}
	return created, err
}

func (r *invoiceRepository) GetByID(ctx context.Context, id int64) (invoice.Invoice, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(q.QueryRow(ctx, query, id))
}

func (r *invoiceRepository) ListBySubscription(ctx context.Context, subscriptionID int64) ([]invoice.Invoice, error) {
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE subscription_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.queryInvoices(ctx, query, subscriptionID)
}

func (r *invoiceRepository) List(ctx context.Context) ([]invoice.Invoice, error) {
	return r.queryInvoices(ctx, `SELECT`+invoiceColumns+` FROM invoices ORDER BY id`)
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id int64, method, transactionID string, paidAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invoices
		SET status = 'paid', paid_at = $2, payment_method = $3, transaction_id = NULLIF($4, '')
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := q.Exec(ctx, query, id, paidAt, method, transactionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepository) DeleteBySubscription(ctx context.Context, subscriptionID int64) (int64, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM invoices WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *invoiceRepository) CountByStatus(ctx context.Context) (map[invoice.Status]int64, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT status, COUNT(*) FROM invoices GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[invoice.Status]int64)
	for rows.Next() {
		var (
			status invoice.Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
