package invoice

import "github.com/sitepass/subscription-whitelist/internal/pkg/validator"

// MarkPaidRequest is the payment-confirmed callback payload.
type MarkPaidRequest struct {
	InvoiceID     int64  `json:"invoice_id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
}

func (r *MarkPaidRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.InvoiceID <= 0 {
		errs = append(errs, validator.ValidationError{Field: "invoice_id", Message: "invoice_id is required"})
	}
	if validator.IsEmpty(r.PaymentMethod) {
		errs = append(errs, validator.ValidationError{Field: "payment_method", Message: "payment_method is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PaymentView is what a customer following a payment link sees.
type PaymentView struct {
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Status        Status `json:"status"`
}
