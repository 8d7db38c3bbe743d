package export

import (
	"context"
	"strconv"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/export"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
)

// exportPageSize bounds each subscription listing query.
const exportPageSize = 500

type exportService struct {
	subscriptionRepo subscription.SubscriptionRepository
	invoiceRepo      invoice.InvoiceRepository
	urlRepo          whitelist.UserURLRepository
}

func NewExportService(
	subscriptionRepo subscription.SubscriptionRepository,
	invoiceRepo invoice.InvoiceRepository,
	urlRepo whitelist.UserURLRepository,
) export.ExportService {
	return &exportService{
		subscriptionRepo: subscriptionRepo,
		invoiceRepo:      invoiceRepo,
		urlRepo:          urlRepo,
	}
}

func (s *exportService) Rows(ctx context.Context, t export.Type) ([][]string, error) {
	switch t {
	case export.TypeSubscriptions:
		return s.subscriptionRows(ctx)
	case export.TypeInvoices:
		return s.invoiceRows(ctx)
	case export.TypeURLs:
		return s.urlRows(ctx)
	default:
		return nil, export.ErrUnknownExportType
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (s *exportService) subscriptionRows(ctx context.Context) ([][]string, error) {
	rows := [][]string{{
		"id", "user_id", "subscription_type", "amount", "status",
		"start_date", "next_billing_date", "last_billing_date", "expiry_date", "created_at",
	}}

	for offset := 0; ; offset += exportPageSize {
		page, err := s.subscriptionRepo.List(ctx, subscription.ListFilter{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return nil, apperror.Persistence("list subscriptions", err)
		}
		for _, sub := range page {
			rows = append(rows, []string{
				id(sub.ID),
				id(sub.UserID),
				string(sub.Type),
				sub.Amount.StringFixed(2),
				string(sub.Status),
				formatTime(sub.StartDate),
				formatTime(sub.NextBillingDate),
				formatOptionalTime(sub.LastBillingDate),
				formatOptionalTime(sub.ExpiryDate),
				formatTime(sub.CreatedAt),
			})
		}
		if len(page) < exportPageSize {
			return rows, nil
		}
	}
}

func (s *exportService) invoiceRows(ctx context.Context) ([][]string, error) {
	invoices, err := s.invoiceRepo.List(ctx)
	if err != nil {
		return nil, apperror.Persistence("list invoices", err)
	}

	rows := make([][]string, 0, len(invoices)+1)
	rows = append(rows, []string{
		"id", "invoice_number", "subscription_id", "user_id", "amount", "status",
		"created_at", "paid_at", "payment_method", "transaction_id",
	})
	for _, inv := range invoices {
		rows = append(rows, []string{
			id(inv.ID),
			inv.InvoiceNumber,
			id(inv.SubscriptionID),
			id(inv.UserID),
			inv.Amount.StringFixed(2),
			string(inv.Status),
			formatTime(inv.CreatedAt),
			formatOptionalTime(inv.PaidAt),
			optional(inv.PaymentMethod),
			optional(inv.TransactionID),
		})
	}
	return rows, nil
}

func (s *exportService) urlRows(ctx context.Context) ([][]string, error) {
	urls, err := s.urlRepo.List(ctx)
	if err != nil {
		return nil, apperror.Persistence("list urls", err)
	}

	rows := make([][]string, 0, len(urls)+1)
	rows = append(rows, []string{"id", "user_id", "subscription_id", "url", "status", "created_at", "updated_at"})
	for _, u := range urls {
		rows = append(rows, []string{
			id(u.ID),
			id(u.UserID),
			id(u.SubscriptionID),
			u.URL,
			string(u.Status),
			formatTime(u.CreatedAt),
			formatTime(u.UpdatedAt),
		})
	}
	return rows, nil
}
