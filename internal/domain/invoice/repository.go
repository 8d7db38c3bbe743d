package invoice

import (
	"context"
	"time"
)

type InvoiceRepository interface {
	// Create returns ErrInvoiceNumberTaken when the number is already used.
	Create(ctx context.Context, inv Invoice) (Invoice, error)

	// GetByID returns pgx.ErrNoRows when missing.
	GetByID(ctx context.Context, id int64) (Invoice, error)

	ListBySubscription(ctx context.Context, subscriptionID int64) ([]Invoice, error)

	List(ctx context.Context) ([]Invoice, error)

	// MarkPaid flips a pending invoice to paid. It returns false when the
	// invoice was not pending.
	MarkPaid(ctx context.Context, id int64, method, transactionID string, paidAt time.Time) (bool, error)

	DeleteBySubscription(ctx context.Context, subscriptionID int64) (int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
