package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the status of an invoice
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Invoice is one billing period's charge. Amount is copied from the
// subscription at creation and never changes afterwards.
type Invoice struct {
	ID             int64           `json:"id"`
	SubscriptionID int64           `json:"subscription_id"`
	UserID         int64           `json:"user_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	Amount         decimal.Decimal `json:"amount"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
}
