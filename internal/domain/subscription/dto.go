package subscription

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sitepass/subscription-whitelist/internal/pkg/validator"
)

// DeleteConfirmation is the literal a caller must send to delete a subscription.
const DeleteConfirmation = "DELETE"

// ==================== Request DTOs ====================

// CreateSubscriptionRequest creates a subscription for an existing user.
// DurationMonths of zero means the subscription never expires.
type CreateSubscriptionRequest struct {
	UserID         int64           `json:"user_id"`
	Type           Type            `json:"subscription_type"`
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.UserID <= 0 {
		errs = append(errs, validator.ValidationError{Field: "user_id", Message: "user_id is required"})
	}
	if !r.Type.Valid() {
		errs = append(errs, validator.ValidationError{Field: "subscription_type", Message: "subscription_type must be 'monthly' or 'yearly'"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, validator.ValidationError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if r.DurationMonths < 0 {
		errs = append(errs, validator.ValidationError{Field: "duration_months", Message: "duration_months must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PurchaseEvent is the platform's "order completed" callback payload.
type PurchaseEvent struct {
	OrderID        string          `json:"order_id"`
	UserID         int64           `json:"user_id"`
	Type           Type            `json:"subscription_type"`
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

func (e *PurchaseEvent) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(e.OrderID) {
		errs = append(errs, validator.ValidationError{Field: "order_id", Message: "order_id is required"})
	}
	req := e.CreateRequest()
	if err := req.Validate(); err != nil {
		errs = append(errs, err.(validator.ValidationErrors)...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (e *PurchaseEvent) CreateRequest() CreateSubscriptionRequest {
	return CreateSubscriptionRequest{
		UserID:         e.UserID,
		Type:           e.Type,
		Amount:         e.Amount,
		DurationMonths: e.DurationMonths,
	}
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	if !r.Status.Valid() {
		return validator.ValidationErrors{{Field: "status", Message: "status must be one of active, paused, cancelled"}}
	}
	return nil
}

// DeleteSubscriptionRequest must carry Confirm == "DELETE".
type DeleteSubscriptionRequest struct {
	ID      int64  `json:"-"`
	Confirm string `json:"confirm"`
}

func (r *DeleteSubscriptionRequest) Validate() error {
	if strings.TrimSpace(r.Confirm) != DeleteConfirmation {
		return ErrDeleteNotConfirmed
	}
	return nil
}

// ==================== Response DTOs ====================

type PurchaseResult struct {
	SubscriptionID   int64 `json:"subscription_id"`
	AlreadyProcessed bool  `json:"already_processed"`
}

type DeleteResult struct {
	SubscriptionID  int64 `json:"subscription_id"`
	URLsRemoved     int   `json:"urls_removed"`
	InvoicesRemoved int64 `json:"invoices_removed"`
}
