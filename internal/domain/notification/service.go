package notification

import (
	"context"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
)

// Notifier renders and delivers customer and admin emails.
type Notifier interface {
	Welcome(ctx context.Context, sub subscription.Subscription) error
	InvoiceIssued(ctx context.Context, inv invoice.Invoice, paymentLink string) error
	PaymentConfirmed(ctx context.Context, inv invoice.Invoice) error
	HousekeepingReport(ctx context.Context, summary report.HousekeepingSummary) error
}
