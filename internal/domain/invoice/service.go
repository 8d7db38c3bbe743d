package invoice

import (
	"context"
	"time"
)

type InvoiceService interface {
	CreateFromSubscription(ctx context.Context, subscriptionID int64, sendEmail bool) (Invoice, error)
	MarkAsPaid(ctx context.Context, req MarkPaidRequest) (Invoice, error)
	ProcessRecurringPayments(ctx context.Context, now time.Time) (int, error)

	Get(ctx context.Context, id int64) (Invoice, error)
	ListBySubscription(ctx context.Context, subscriptionID int64) ([]Invoice, error)

	PaymentLink(inv Invoice) string
	VerifyPaymentLink(ctx context.Context, invoiceID int64, token string) (Invoice, error)
}
