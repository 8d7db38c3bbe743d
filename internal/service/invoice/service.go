package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/notification"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/sitepass/subscription-whitelist/internal/pkg/metrics"
	"github.com/sitepass/subscription-whitelist/internal/pkg/paylink"
)

// numberAttempts bounds invoice number allocation: the first try plus one
// retry with a fresh suffix.
const numberAttempts = 2

type Deps struct {
	Invoices      invoice.InvoiceRepository
	Subscriptions subscription.SubscriptionService
	Signer        *paylink.Signer
	Notifier      notification.Notifier
	Metrics       *metrics.Metrics
	Prefix        string
	Clock         func() time.Time
	// Suffix returns the random part of an invoice number.
	Suffix func() string
}

type invoiceService struct {
	invoiceRepo   invoice.InvoiceRepository
	subscriptions subscription.SubscriptionService
	signer        *paylink.Signer
	notifier      notification.Notifier
	metrics       *metrics.Metrics
	prefix        string
	now           func() time.Time
	suffix        func() string
}

func NewInvoiceService(d Deps) invoice.InvoiceService {
	s := &invoiceService{
		invoiceRepo:   d.Invoices,
		subscriptions: d.Subscriptions,
		signer:        d.Signer,
		notifier:      d.Notifier,
		metrics:       d.Metrics,
		prefix:        d.Prefix,
		now:           d.Clock,
		suffix:        d.Suffix,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.suffix == nil {
		s.suffix = randomSuffix
	}
	if s.prefix == "" {
		s.prefix = "INV"
	}
	return s
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// invoiceNumber formats {prefix}-{year}-{subscription id, 6 digits}-{suffix}.
func (s *invoiceService) invoiceNumber(subscriptionID int64, at time.Time) string {
	return fmt.Sprintf("%s-%d-%06d-%s", s.prefix, at.Year(), subscriptionID, s.suffix())
}

// ==================== Creation ====================

func (s *invoiceService) CreateFromSubscription(ctx context.Context, subscriptionID int64, sendEmail bool) (invoice.Invoice, error) {
	sub, err := s.subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if sub.Status != subscription.StatusActive {
		return invoice.Invoice{}, invoice.ErrSubscriptionNotActive
	}

	now := s.now()
	var created invoice.Invoice
	for attempt := 1; ; attempt++ {
		created, err = s.invoiceRepo.Create(ctx, invoice.Invoice{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			InvoiceNumber:  s.invoiceNumber(sub.ID, now),
			Amount:         sub.Amount,
			Status:         invoice.StatusPending,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, invoice.ErrInvoiceNumberTaken) {
			return invoice.Invoice{}, apperror.Persistence("create invoice", err)
		}
		if attempt >= numberAttempts {
			return invoice.Invoice{}, invoice.ErrInvoiceNumberConflict
		}
		slog.WarnContext(ctx, "invoice number collision, retrying", "subscription_id", sub.ID)
	}

	if s.metrics != nil {
		s.metrics.InvoicesCreated.Inc()
	}
	slog.InfoContext(ctx, "invoice created",
		"invoice_id", created.ID,
		"invoice_number", created.InvoiceNumber,
		"subscription_id", sub.ID,
		"amount", created.Amount.String(),
	)

	if sendEmail && s.notifier != nil {
		if err := s.notifier.InvoiceIssued(ctx, created, s.PaymentLink(created)); err != nil {
			slog.WarnContext(ctx, "invoice email failed", "invoice_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// ProcessRecurringPayments bills every due subscription. A failing item is
// logged and skipped; the rest of the batch continues.
func (s *invoiceService) ProcessRecurringPayments(ctx context.Context, now time.Time) (int, error) {
	due, err := s.subscriptions.GetDueForBilling(ctx, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, sub := range due {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		inv, err := s.CreateFromSubscription(ctx, sub.ID, true)
		if err != nil {
			s.billingFailed(ctx, sub.ID, "create invoice", err)
			continue
		}
		if _, err := s.subscriptions.AdvanceBillingDate(ctx, sub.ID, now); err != nil {
			s.billingFailed(ctx, sub.ID, "advance billing date", err)
			continue
		}

		slog.InfoContext(ctx, "recurring payment processed", "subscription_id", sub.ID, "invoice_id", inv.ID)
		processed++
	}

	slog.InfoContext(ctx, "recurring payments run finished", "due", len(due), "processed", processed)
	return processed, nil
}

func (s *invoiceService) billingFailed(ctx context.Context, subscriptionID int64, step string, err error) {
	if s.metrics != nil {
		s.metrics.BillingFailures.Inc()
	}
	slog.ErrorContext(ctx, "recurring payment failed",
		"subscription_id", subscriptionID,
		"step", step,
		"error", err,
	)
}

// ==================== Payment ====================

// MarkAsPaid settles a pending invoice. Paying twice returns
// ErrInvoiceAlreadyPaid and sends no second confirmation.
func (s *invoiceService) MarkAsPaid(ctx context.Context, req invoice.MarkPaidRequest) (invoice.Invoice, error) {
	if err := req.Validate(); err != nil {
		return invoice.Invoice{}, err
	}

	inv, err := s.Get(ctx, req.InvoiceID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := payable(inv); err != nil {
		return inv, err
	}

	paidAt := s.now()
	ok, err := s.invoiceRepo.MarkPaid(ctx, inv.ID, req.PaymentMethod, req.TransactionID, paidAt)
	if err != nil {
		return invoice.Invoice{}, apperror.Persistence("mark invoice paid", err)
	}
	if !ok {
		// Lost a race with another payment callback.
		current, err := s.Get(ctx, req.InvoiceID)
		if err != nil {
			return invoice.Invoice{}, err
		}
		if err := payable(current); err != nil {
			return current, err
		}
		return current, invoice.ErrInvoiceNotPayable
	}

	inv.Status = invoice.StatusPaid
	inv.PaidAt = &paidAt
	inv.PaymentMethod = &req.PaymentMethod
	if req.TransactionID != "" {
		inv.TransactionID = &req.TransactionID
	}

	if s.metrics != nil {
		s.metrics.InvoicesPaid.Inc()
	}
	slog.InfoContext(ctx, "invoice paid",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"payment_method", req.PaymentMethod,
	)

	if s.notifier != nil {
		if err := s.notifier.PaymentConfirmed(ctx, inv); err != nil {
			slog.WarnContext(ctx, "payment confirmation email failed", "invoice_id", inv.ID, "error", err)
		}
	}
	return inv, nil
}

func payable(inv invoice.Invoice) error {
	switch inv.Status {
	case invoice.StatusPaid:
		return invoice.ErrInvoiceAlreadyPaid
	case invoice.StatusPending:
		return nil
	default:
		return invoice.ErrInvoiceNotPayable
	}
}

func (s *invoiceService) PaymentLink(inv invoice.Invoice) string {
	if s.signer == nil {
		return ""
	}
	return s.signer.Link(inv.ID, inv.InvoiceNumber)
}

func (s *invoiceService) VerifyPaymentLink(ctx context.Context, invoiceID int64, token string) (invoice.Invoice, error) {
	if token == "" || s.signer == nil {
		return invoice.Invoice{}, invoice.ErrInvalidPaymentToken
	}
	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, invoice.ErrInvoiceNotFound) {
			// Do not reveal which ids exist.
			return invoice.Invoice{}, invoice.ErrInvalidPaymentToken
		}
		return invoice.Invoice{}, err
	}
	if !s.signer.Verify(inv.InvoiceNumber, token) {
		return invoice.Invoice{}, invoice.ErrInvalidPaymentToken
	}
	return inv, nil
}

// ==================== Reads ====================

func (s *invoiceService) Get(ctx context.Context, id int64) (invoice.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrInvoiceNotFound
		}
		return invoice.Invoice{}, apperror.Persistence("get invoice", err)
	}
	return inv, nil
}

func (s *invoiceService) ListBySubscription(ctx context.Context, subscriptionID int64) ([]invoice.Invoice, error) {
	if _, err := s.subscriptions.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}
	invoices, err := s.invoiceRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, apperror.Persistence("list invoices", err)
	}
	return invoices, nil
}
