package invoice

import "github.com/sitepass/subscription-whitelist/internal/pkg/apperror"

var (
	ErrInvoiceNotFound       = apperror.New(apperror.ErrNotFound, "invoice not found")
	ErrSubscriptionNotActive = apperror.New(apperror.ErrState, "subscription is not active")
	ErrInvoiceAlreadyPaid    = apperror.New(apperror.ErrConflict, "invoice already paid")
	ErrInvoiceNotPayable     = apperror.New(apperror.ErrState, "invoice cannot be paid")
	ErrInvoiceNumberTaken    = apperror.New(apperror.ErrConflict, "invoice number already exists")
	ErrInvoiceNumberConflict = apperror.New(apperror.ErrConflict, "could not allocate a unique invoice number")
	ErrInvalidPaymentToken   = apperror.New(apperror.ErrValidation, "payment link is invalid")
)
