package subscription

import "github.com/sitepass/subscription-whitelist/internal/pkg/apperror"

var (
	ErrSubscriptionNotFound  = apperror.New(apperror.ErrNotFound, "subscription not found")
	ErrUserNotFound          = apperror.New(apperror.ErrValidation, "user does not exist")
	ErrInvalidTransition     = apperror.New(apperror.ErrState, "status transition not allowed")
	ErrSubscriptionCancelled = apperror.New(apperror.ErrState, "subscription is cancelled")
	ErrBillingDateMoved      = apperror.New(apperror.ErrState, "billing date was already advanced")
	ErrDeleteNotConfirmed    = apperror.New(apperror.ErrValidation, "deletion must be confirmed with \"DELETE\"")
	ErrOrderNotClaimed       = apperror.New(apperror.ErrConflict, "order is being processed")
)
