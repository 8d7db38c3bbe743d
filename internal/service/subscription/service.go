package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sitepass/subscription-whitelist/internal/domain/notification"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/domain/user"
	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
	"github.com/sitepass/subscription-whitelist/internal/pkg/database"
	"github.com/sitepass/subscription-whitelist/internal/pkg/events"
)

// InvoiceRemover deletes a subscription's invoices inside the delete cascade.
type InvoiceRemover interface {
	DeleteBySubscription(ctx context.Context, subscriptionID int64) (int64, error)
}

type Deps struct {
	Subscriptions subscription.SubscriptionRepository
	Orders        subscription.ProcessedOrderRepository
	Users         user.Directory
	URLs          whitelist.UserURLRepository
	Invoices      InvoiceRemover
	Reconciler    whitelist.Reconciler
	Notifier      notification.Notifier
	Events        events.Publisher
	Tx            database.Transactor
	Clock         func() time.Time
}

type subscriptionService struct {
	subscriptionRepo subscription.SubscriptionRepository
	orderRepo        subscription.ProcessedOrderRepository
	users            user.Directory
	urlRepo          whitelist.UserURLRepository
	invoices         InvoiceRemover
	reconciler       whitelist.Reconciler
	notifier         notification.Notifier
	events           events.Publisher
	tx               database.Transactor
	now              func() time.Time
}

func NewSubscriptionService(d Deps) subscription.SubscriptionService {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	return &subscriptionService{
		subscriptionRepo: d.Subscriptions,
		orderRepo:        d.Orders,
		users:            d.Users,
		urlRepo:          d.URLs,
		invoices:         d.Invoices,
		reconciler:       d.Reconciler,
		notifier:         d.Notifier,
		events:           d.Events,
		tx:               d.Tx,
		now:              clock,
	}
}

// ==================== Creation ====================

func (s *subscriptionService) Create(ctx context.Context, req subscription.CreateSubscriptionRequest) (subscription.Subscription, error) {
	sub, err := s.create(ctx, req)
	if err != nil {
		return subscription.Subscription{}, err
	}
	s.sendWelcome(ctx, sub)
	return sub, nil
}

func (s *subscriptionService) create(ctx context.Context, req subscription.CreateSubscriptionRequest) (subscription.Subscription, error) {
	if err := req.Validate(); err != nil {
		return subscription.Subscription{}, err
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subscription.Subscription{}, subscription.ErrUserNotFound
		}
		return subscription.Subscription{}, apperror.Persistence("get user", err)
	}

	start := s.now().UTC()
	sub := subscription.Subscription{
		UserID:          req.UserID,
		Type:            req.Type,
		Amount:          req.Amount,
		Status:          subscription.StatusActive,
		StartDate:       start,
		NextBillingDate: req.Type.Advance(start),
	}
	if req.DurationMonths > 0 {
		expiry := start.AddDate(0, req.DurationMonths, 0)
		sub.ExpiryDate = &expiry
	}

	created, err := s.subscriptionRepo.Create(ctx, sub)
	if err != nil {
		return subscription.Subscription{}, apperror.Persistence("create subscription", err)
	}

	slog.InfoContext(ctx, "subscription created",
		"subscription_id", created.ID,
		"user_id", created.UserID,
		"type", created.Type,
		"amount", created.Amount.String(),
	)
	return created, nil
}

func (s *subscriptionService) sendWelcome(ctx context.Context, sub subscription.Subscription) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Welcome(ctx, sub); err != nil {
		slog.WarnContext(ctx, "welcome email failed", "subscription_id", sub.ID, "error", err)
	}
}

// HandlePurchaseCompleted creates at most one subscription per platform order.
func (s *subscriptionService) HandlePurchaseCompleted(ctx context.Context, evt subscription.PurchaseEvent) (subscription.PurchaseResult, error) {
	if err := evt.Validate(); err != nil {
		return subscription.PurchaseResult{}, err
	}

	var (
		result  subscription.PurchaseResult
		created subscription.Subscription
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		claimed, err := s.orderRepo.Claim(ctx, evt.OrderID)
		if err != nil {
			return apperror.Persistence("claim order", err)
		}
		if !claimed {
			order, err := s.orderRepo.Get(ctx, evt.OrderID)
			if err != nil {
				return apperror.Persistence("get processed order", err)
			}
			if order.SubscriptionID == nil {
				return subscription.ErrOrderNotClaimed
			}
			result = subscription.PurchaseResult{SubscriptionID: *order.SubscriptionID, AlreadyProcessed: true}
			return nil
		}

		created, err = s.create(ctx, evt.CreateRequest())
		if err != nil {
			return err
		}
		if err := s.orderRepo.Attach(ctx, evt.OrderID, created.ID); err != nil {
			return apperror.Persistence("attach order", err)
		}
		result = subscription.PurchaseResult{SubscriptionID: created.ID}
		return nil
	})
	if err != nil {
		return subscription.PurchaseResult{}, err
	}

	if result.AlreadyProcessed {
		slog.InfoContext(ctx, "purchase already processed", "order_id", evt.OrderID, "subscription_id", result.SubscriptionID)
	} else {
		s.sendWelcome(ctx, created)
	}
	return result, nil
}

// ==================== Reads ====================

func (s *subscriptionService) Get(ctx context.Context, id int64) (subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
		}
		return subscription.Subscription{}, apperror.Persistence("get subscription", err)
	}
	return sub, nil
}

func (s *subscriptionService) List(ctx context.Context, filter subscription.ListFilter) ([]subscription.Subscription, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	subs, err := s.subscriptionRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.Persistence("list subscriptions", err)
	}
	return subs, nil
}

func (s *subscriptionService) GetDueForBilling(ctx context.Context, now time.Time) ([]subscription.Subscription, error) {
	subs, err := s.subscriptionRepo.GetDueForBilling(ctx, now)
	if err != nil {
		return nil, apperror.Persistence("get due subscriptions", err)
	}
	return subs, nil
}

func (s *subscriptionService) GetActiveForUser(ctx context.Context, userID int64, now time.Time) (*subscription.Subscription, error) {
	sub, err := s.subscriptionRepo.GetActiveForUser(ctx, userID, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.Persistence("get active subscription", err)
	}
	return &sub, nil
}

// ==================== Status ====================

func (s *subscriptionService) UpdateStatus(ctx context.Context, id int64, status subscription.Status) (subscription.Subscription, error) {
	if !status.Valid() {
		return subscription.Subscription{}, apperror.Validation("invalid status %q", status)
	}

	sub, err := s.Get(ctx, id)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if sub.Status == status {
		return sub, nil
	}
	if !sub.Status.CanTransitionTo(status) {
		if sub.Status == subscription.StatusCancelled {
			return subscription.Subscription{}, subscription.ErrSubscriptionCancelled
		}
		return subscription.Subscription{}, fmt.Errorf("%w: %s to %s", subscription.ErrInvalidTransition, sub.Status, status)
	}

	if err := s.subscriptionRepo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subscription.Subscription{}, subscription.ErrSubscriptionNotFound
		}
		return subscription.Subscription{}, apperror.Persistence("update subscription status", err)
	}

	previous := sub.Status
	sub.Status = status
	sub.UpdatedAt = s.now()

	slog.InfoContext(ctx, "subscription status changed",
		"subscription_id", id,
		"from", previous,
		"to", status,
	)

	if previous == subscription.StatusActive && s.events != nil {
		evt := events.StatusChanged{
			SubscriptionID: sub.ID,
			UserID:         sub.UserID,
			From:           string(previous),
			To:             string(status),
			At:             sub.UpdatedAt,
		}
		if err := s.events.PublishStatusChanged(ctx, evt); err != nil {
			slog.WarnContext(ctx, "publish status change failed", "subscription_id", id, "error", err)
		}
	}
	return sub, nil
}

func (s *subscriptionService) Pause(ctx context.Context, id int64) (subscription.Subscription, error) {
	return s.UpdateStatus(ctx, id, subscription.StatusPaused)
}

func (s *subscriptionService) Activate(ctx context.Context, id int64) (subscription.Subscription, error) {
	return s.UpdateStatus(ctx, id, subscription.StatusActive)
}

func (s *subscriptionService) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.subscriptionRepo.CancelExpired(ctx, now)
	if err != nil {
		return 0, apperror.Persistence("cancel expired subscriptions", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "cancelled expired subscriptions", "count", n)
	}
	return n, nil
}

// ==================== Billing ====================

// AdvanceBillingDate moves the schedule one interval past the previously
// scheduled date, not past now, so late runs do not drift the anchor.
func (s *subscriptionService) AdvanceBillingDate(ctx context.Context, id int64, now time.Time) (subscription.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return subscription.Subscription{}, err
	}

	next := sub.Type.Advance(sub.NextBillingDate)
	ok, err := s.subscriptionRepo.AdvanceBillingDate(ctx, id, sub.NextBillingDate, next, now)
	if err != nil {
		return subscription.Subscription{}, apperror.Persistence("advance billing date", err)
	}
	if !ok {
		return subscription.Subscription{}, subscription.ErrBillingDateMoved
	}

	billed := now
	sub.NextBillingDate = next
	sub.LastBillingDate = &billed
	return sub, nil
}

// ==================== Deletion ====================

// Delete removes the subscription with its urls and invoices in one
// transaction, then drops its urls from the whitelist. A whitelist failure
// does not undo the delete; the urls are logged so an operator can remove
// the lines, which are no longer recognised as managed.
func (s *subscriptionService) Delete(ctx context.Context, req subscription.DeleteSubscriptionRequest) (subscription.DeleteResult, error) {
	if err := req.Validate(); err != nil {
		return subscription.DeleteResult{}, err
	}

	result := subscription.DeleteResult{SubscriptionID: req.ID}
	var urls []string

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.Get(ctx, req.ID); err != nil {
			return err
		}

		rows, err := s.urlRepo.ListBySubscription(ctx, req.ID)
		if err != nil {
			return apperror.Persistence("list subscription urls", err)
		}
		for _, r := range rows {
			urls = append(urls, r.URL)
		}

		if _, err := s.urlRepo.DeleteBySubscription(ctx, req.ID); err != nil {
			return apperror.Persistence("delete subscription urls", err)
		}
		n, err := s.invoices.DeleteBySubscription(ctx, req.ID)
		if err != nil {
			return apperror.Persistence("delete subscription invoices", err)
		}
		result.InvoicesRemoved = n

		if err := s.subscriptionRepo.Delete(ctx, req.ID); err != nil {
			return apperror.Persistence("delete subscription", err)
		}
		return nil
	})
	if err != nil {
		return subscription.DeleteResult{}, err
	}
	result.URLsRemoved = len(urls)

	slog.InfoContext(ctx, "subscription deleted",
		"subscription_id", req.ID,
		"urls_removed", result.URLsRemoved,
		"invoices_removed", result.InvoicesRemoved,
	)

	if len(urls) > 0 && s.reconciler != nil {
		if err := s.reconciler.RemoveURLs(ctx, urls, s.now()); err != nil {
			slog.ErrorContext(ctx, "whitelist cleanup after delete failed",
				"subscription_id", req.ID,
				"urls", urls,
				"error", err,
			)
		}
	}
	return result, nil
}
