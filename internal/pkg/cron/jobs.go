package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/notification"
	"github.com/sitepass/subscription-whitelist/internal/domain/report"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
)

const (
	JobProcessRecurringPayments = "process_recurring_payments"
	JobURLExpirySweep           = "url_expiry_sweep"
	JobDailyHousekeeping        = "daily_housekeeping"
)

// MaintenanceJobs contains the billing and whitelist maintenance jobs
type MaintenanceJobs struct {
	invoices      invoice.InvoiceService
	subscriptions subscription.SubscriptionService
	reconciler    whitelist.Reconciler
	reports       report.ReportService
	notifier      notification.Notifier
	now           func() time.Time
}

// NewMaintenanceJobs creates maintenance cron jobs. notifier may be nil.
func NewMaintenanceJobs(
	invoices invoice.InvoiceService,
	subscriptions subscription.SubscriptionService,
	reconciler whitelist.Reconciler,
	reports report.ReportService,
	notifier notification.Notifier,
	clock func() time.Time,
) *MaintenanceJobs {
	if clock == nil {
		clock = time.Now
	}
	return &MaintenanceJobs{
		invoices:      invoices,
		subscriptions: subscriptions,
		reconciler:    reconciler,
		reports:       reports,
		notifier:      notifier,
		now:           clock,
	}
}

// RegisterJobs registers all maintenance jobs
func (j *MaintenanceJobs) RegisterJobs(scheduler *Scheduler, cfg config.SchedulerConfig) {
	scheduler.AddJob(JobProcessRecurringPayments, cfg.BillingInterval, j.ProcessRecurringPayments)
	scheduler.AddJob(JobURLExpirySweep, cfg.ExpirySweepInterval, j.URLExpirySweep)
	scheduler.AddJob(JobDailyHousekeeping, cfg.HousekeepingInterval, j.DailyHousekeeping)
}

// ProcessRecurringPayments invoices every subscription whose billing date has come
func (j *MaintenanceJobs) ProcessRecurringPayments(ctx context.Context) error {
	n, err := j.invoices.ProcessRecurringPayments(ctx, j.now())
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Cron: processed recurring payments", "count", n)
	return nil
}

// URLExpirySweep expires urls of lapsed subscriptions and reconciles the whitelist
func (j *MaintenanceJobs) URLExpirySweep(ctx context.Context) error {
	n, err := j.reconciler.ExpireSweep(ctx, j.now())
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Cron: url expiry sweep", "expired", n)
	return nil
}

// DailyHousekeeping cancels elapsed subscriptions, sweeps their urls and mails
// a summary. A failed step is reported but does not stop the later ones.
func (j *MaintenanceJobs) DailyHousekeeping(ctx context.Context) error {
	now := j.now()
	var errs []error

	cancelled, err := j.subscriptions.CancelExpired(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}

	expired, err := j.reconciler.ExpireSweep(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}

	summary, err := j.reports.Snapshot(ctx, now)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	summary.CancelledSubscriptions = cancelled
	summary.ExpiredURLs = expired

	slog.InfoContext(ctx, "Cron: housekeeping summary",
		"cancelled_subscriptions", cancelled,
		"expired_urls", expired,
		"whitelist_entries", summary.WhitelistEntries,
	)

	if j.notifier != nil {
		if err := j.notifier.HousekeepingReport(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
