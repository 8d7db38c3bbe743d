package subscription

import (
	"context"
	"time"
)

type SubscriptionRepository interface {
	// Create inserts sub and returns it with ID and timestamps populated.
	Create(ctx context.Context, sub Subscription) (Subscription, error)

	// GetByID returns pgx.ErrNoRows when the subscription does not exist.
	GetByID(ctx context.Context, id int64) (Subscription, error)

	List(ctx context.Context, filter ListFilter) ([]Subscription, error)

	UpdateStatus(ctx context.Context, id int64, status Status) error

	Delete(ctx context.Context, id int64) error

	// GetDueForBilling returns active, unexpired subscriptions whose
	// next_billing_date is at or before now.
	GetDueForBilling(ctx context.Context, now time.Time) ([]Subscription, error)

	// AdvanceBillingDate moves next_billing_date from expected to next and
	// stamps last_billing_date. It returns false when next_billing_date no
	// longer equals expected.
	AdvanceBillingDate(ctx context.Context, id int64, expected, next, billedAt time.Time) (bool, error)

	// GetActiveForUser returns the most recently created live subscription,
	// or pgx.ErrNoRows.
	GetActiveForUser(ctx context.Context, userID int64, now time.Time) (Subscription, error)

	// CancelExpired cancels active subscriptions whose expiry has
	// passed and returns how many rows changed.
	CancelExpired(ctx context.Context, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// ProcessedOrderRepository records which platform orders already produced a
// subscription.
type ProcessedOrderRepository interface {
	// Claim inserts the order marker. It returns false when the order was
	// already claimed.
	Claim(ctx context.Context, orderID string) (bool, error)

	Attach(ctx context.Context, orderID string, subscriptionID int64) error

	// Get returns pgx.ErrNoRows for unknown orders.
	Get(ctx context.Context, orderID string) (ProcessedOrder, error)
}
