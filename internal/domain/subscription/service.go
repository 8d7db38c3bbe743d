package subscription

import (
	"context"
	"time"
)

type SubscriptionService interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	HandlePurchaseCompleted(ctx context.Context, evt PurchaseEvent) (PurchaseResult, error)

	Get(ctx context.Context, id int64) (Subscription, error)
	List(ctx context.Context, filter ListFilter) ([]Subscription, error)

	UpdateStatus(ctx context.Context, id int64, status Status) (Subscription, error)
	Pause(ctx context.Context, id int64) (Subscription, error)
	Activate(ctx context.Context, id int64) (Subscription, error)

	Delete(ctx context.Context, req DeleteSubscriptionRequest) (DeleteResult, error)

	GetDueForBilling(ctx context.Context, now time.Time) ([]Subscription, error)
	AdvanceBillingDate(ctx context.Context, id int64, now time.Time) (Subscription, error)
	GetActiveForUser(ctx context.Context, userID int64, now time.Time) (*Subscription, error)

	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}
