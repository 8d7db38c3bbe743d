package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the billing interval of a subscription.
type Type string

const (
	TypeMonthly Type = "monthly"
	TypeYearly  Type = "yearly"
)

func (t Type) Valid() bool {
	return t == TypeMonthly || t == TypeYearly
}

// Advance returns from moved forward by one billing interval using calendar
// arithmetic. Month overflow normalizes forward (Jan 30 + 1 month = Mar 2 in
// a non-leap year), and the result is always anchored on from, never on the
// time the billing actually ran.
func (t Type) Advance(from time.Time) time.Time {
	if t == TypeYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Status represents the lifecycle state of a subscription
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusPaused || s == StatusCancelled
}

// CanTransitionTo reports whether s may move to next.
// active <-> paused, active|paused -> cancelled; cancelled is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusCancelled
	case StatusPaused:
		return next == StatusActive || next == StatusCancelled
	default:
		return false
	}
}

// Subscription is one user's recurring purchase.
type Subscription struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Type            Type            `json:"subscription_type"`
	Amount          decimal.Decimal `json:"amount"`
	Status          Status          `json:"status"`
	StartDate       time.Time       `json:"start_date"`
	NextBillingDate time.Time       `json:"next_billing_date"`
	LastBillingDate *time.Time      `json:"last_billing_date,omitempty"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"` // nil = lifetime
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsExpired reports whether the fixed term has elapsed at now.
func (s Subscription) IsExpired(now time.Time) bool {
	return s.ExpiryDate != nil && !s.ExpiryDate.After(now)
}

// IsLive reports whether the subscription currently grants access.
func (s Subscription) IsLive(now time.Time) bool {
	return s.Status == StatusActive && !s.IsExpired(now)
}

// ProcessedOrder marks a platform order that already produced a subscription.
type ProcessedOrder struct {
	OrderID        string    `json:"order_id"`
	SubscriptionID *int64    `json:"subscription_id,omitempty"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// ListFilter narrows admin listings.
type ListFilter struct {
	UserID *int64
	Status *Status
	Limit  int
	Offset int
}
