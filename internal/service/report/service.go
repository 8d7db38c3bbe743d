package report

import (
	"context"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"golang.org/x/sync/errgroup"
)

type reportService struct {
	subscriptionRepo subscription.SubscriptionRepository
	invoiceRepo      invoice.InvoiceRepository
	urlRepo          whitelist.UserURLRepository
	reconciler       whitelist.Reconciler
}

func NewReportService(
	subscriptionRepo subscription.SubscriptionRepository,
	invoiceRepo invoice.InvoiceRepository,
	urlRepo whitelist.UserURLRepository,
	reconciler whitelist.Reconciler,
) report.ReportService {
	return &reportService{
		subscriptionRepo: subscriptionRepo,
		invoiceRepo:      invoiceRepo,
		urlRepo:          urlRepo,
		reconciler:       reconciler,
	}
}

// Snapshot runs the four independent counts concurrently.
func (s *reportService) Snapshot(ctx context.Context, now time.Time) (report.HousekeepingSummary, error) {
	summary := report.HousekeepingSummary{
		GeneratedAt:   now,
		Subscriptions: map[string]int64{},
		Invoices:      map[string]int64{},
		URLs:          map[string]int64{},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.subscriptionRepo.CountByStatus(ctx)
		if err != nil {
			return apperror.Persistence("count subscriptions", err)
		}
		for k, v := range counts {
			summary.Subscriptions[string(k)] = v
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.invoiceRepo.CountByStatus(ctx)
		if err != nil {
			return apperror.Persistence("count invoices", err)
		}
		for k, v := range counts {
			summary.Invoices[string(k)] = v
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.urlRepo.CountByStatus(ctx)
		if err != nil {
			return apperror.Persistence("count urls", err)
		}
		for k, v := range counts {
			summary.URLs[string(k)] = v
		}
		return nil
	})
	g.Go(func() error {
		lines, err := s.reconciler.Whitelist(ctx)
		if err != nil {
			return err
		}
		summary.WhitelistEntries = len(lines)
		return nil
	})

	if err := g.Wait(); err != nil {
		return report.HousekeepingSummary{}, err
	}
	return summary, nil
}
