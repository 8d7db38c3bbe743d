// Package bootstrap wires the service graph from configuration. Every
// dependency is passed explicitly; nothing is registered globally.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"github.com/sitepass/subscription-whitelist/internal/domain/export"
	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	appHTTP "github.com/sitepass/subscription-whitelist/internal/handler/http"
	"github.com/sitepass/subscription-whitelist/internal/pkg/cache"
	"github.com/sitepass/subscription-whitelist/internal/pkg/cron"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
	"github.com/sitepass/subscription-whitelist/internal/pkg/email"
	"github.com/sitepass/subscription-whitelist/internal/pkg/events"
	"github.com/sitepass/subscription-whitelist/internal/pkg/jwt"
	"github.com/sitepass/subscription-whitelist/internal/pkg/metrics"
	"github.com/sitepass/subscription-whitelist/internal/pkg/paylink"
	"github.com/sitepass/subscription-whitelist/internal/repository/cached"
	"github.com/sitepass/subscription-whitelist/internal/repository/postgresql"
	exportService "github.com/sitepass/subscription-whitelist/internal/service/export"
	invoiceService "github.com/sitepass/subscription-whitelist/internal/service/invoice"
	notificationService "github.com/sitepass/subscription-whitelist/internal/service/notification"
	reportService "github.com/sitepass/subscription-whitelist/internal/service/report"
	subscriptionService "github.com/sitepass/subscription-whitelist/internal/service/subscription"
	whitelistService "github.com/sitepass/subscription-whitelist/internal/service/whitelist"
)

type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *database.DB
	Metrics *metrics.Metrics
	Bus     *events.Bus
	JWT     jwt.Service

	Subscriptions subscription.SubscriptionService
	Invoices      invoice.InvoiceService
	Reconciler    whitelist.Reconciler
	Export        export.ExportService
	Notifier      *notificationService.Service

	Scheduler *cron.Scheduler
	Listener  *whitelistService.StatusListener

	redis *redis.Client
	clock func() time.Time
}

// NewContainer connects to PostgreSQL (and Redis when configured) and builds
// every service. The caller owns the container and must Close it.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
		clock:  time.Now,
	}

	// 1. Infrastructure
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	c.DB = db

	optionCache, err := c.newCache(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	c.Metrics = metrics.New()
	c.Bus = events.NewBus(logger)
	c.JWT = jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	signer, err := paylink.NewSigner(cfg.Billing.PaymentLinkSecret, cfg.Billing.PaymentBaseURL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("payment links: %w", err)
	}

	content, err := notificationService.NewContent(cfg.Billing.Currency)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("notification templates: %w", err)
	}

	// 2. Repositories
	subscriptionRepo := postgresql.NewSubscriptionRepository(db)
	orderRepo := postgresql.NewProcessedOrderRepository(db)
	invoiceRepo := postgresql.NewInvoiceRepository(db)
	urlRepo := postgresql.NewUserURLRepository(db)
	userRepo := postgresql.NewUserRepository(db)
	optionRepo := cached.NewOptionRepository(postgresql.NewOptionRepository(db), optionCache, cfg.Whitelist.CacheTTL)
	transactor := postgresql.NewTransactor(db)

	// 3. Services
	c.Notifier = notificationService.NewNotificationService(content, email.NewMailer(cfg.SMTP), userRepo, notificationService.Config{
		AdminEmail: cfg.SMTP.AdminEmail,
	})

	c.Reconciler = whitelistService.NewReconciler(whitelistService.Deps{
		URLs:          urlRepo,
		Subscriptions: subscriptionRepo,
		Options:       optionRepo,
		Config:        cfg.Whitelist,
		Metrics:       c.Metrics,
	})

	c.Subscriptions = subscriptionService.NewSubscriptionService(subscriptionService.Deps{
		Subscriptions: subscriptionRepo,
		Orders:        orderRepo,
		Users:         userRepo,
		URLs:          urlRepo,
		Invoices:      invoiceRepo,
		Reconciler:    c.Reconciler,
		Notifier:      c.Notifier,
		Events:        c.Bus,
		Tx:            transactor,
		Clock:         c.clock,
	})

	c.Invoices = invoiceService.NewInvoiceService(invoiceService.Deps{
		Invoices:      invoiceRepo,
		Subscriptions: c.Subscriptions,
		Signer:        signer,
		Notifier:      c.Notifier,
		Metrics:       c.Metrics,
		Prefix:        cfg.Billing.InvoicePrefix,
		Clock:         c.clock,
	})

	c.Export = exportService.NewExportService(subscriptionRepo, invoiceRepo, urlRepo)
	reports := reportService.NewReportService(subscriptionRepo, invoiceRepo, urlRepo, c.Reconciler)

	// 4. Background work
	c.Scheduler = cron.NewScheduler(c.Metrics)
	cron.NewMaintenanceJobs(c.Invoices, c.Subscriptions, c.Reconciler, reports, c.Notifier, c.clock).
		RegisterJobs(c.Scheduler, cfg.Scheduler)
	c.Listener = whitelistService.NewStatusListener(c.Reconciler, c.clock)

	return c, nil
}

// newCache picks Redis when an address is configured and the in-process
// cache otherwise.
func (c *Container) newCache(ctx context.Context) (cache.Cache, error) {
	if c.Config.Redis.Addr == "" {
		c.Logger.Info("redis not configured, using in-process option cache")
		return cache.NewMemory(c.Config.Whitelist.CacheTTL), nil
	}
	client, err := cache.NewRedisClient(ctx, c.Config.Redis.Addr, c.Config.Redis.Password, c.Config.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	c.redis = client
	return cache.NewRedis(client, "subscriptions:"), nil
}

// Router builds the HTTP surface.
func (c *Container) Router() http.Handler {
	return appHTTP.NewRouter(appHTTP.RouterConfig{
		Logger:         c.Logger,
		AllowedOrigins: c.Config.App.AllowedOrigins,
		CallbackToken:  c.Config.Hooks.CallbackToken,
		Metrics:        c.Metrics.Handler(),
	}, c.JWT, appHTTP.Handlers{
		Subscription: appHTTP.NewSubscriptionHandler(c.Subscriptions, c.clock),
		Invoice:      appHTTP.NewInvoiceHandler(c.Invoices, c.Config.Billing.Currency),
		Whitelist:    appHTTP.NewWhitelistHandler(c.Reconciler, c.clock),
		Job:          appHTTP.NewJobHandler(c.Scheduler),
		Export:       appHTTP.NewExportHandler(c.Export, c.clock),
		Hook:         appHTTP.NewHookHandler(c.Subscriptions, c.Invoices),
	})
}

// Close releases resources in reverse order of acquisition. Queued
// notifications are delivered first.
func (c *Container) Close() error {
	var errs []error
	if c.Notifier != nil {
		c.Notifier.Close()
	}
	if c.Bus != nil {
		if err := c.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return errors.Join(errs...)
}
