package whitelist

import (
	"errors"

	"github.com/sitepass/subscription-whitelist/internal/pkg/apperror"
)

var (
	ErrURLNotFound           = apperror.New(apperror.ErrNotFound, "url not found")
	ErrSubscriptionNotFound  = apperror.New(apperror.ErrNotFound, "subscription not found")
	ErrSubscriptionNotOwned  = apperror.New(apperror.ErrState, "subscription does not belong to this user")
	ErrSubscriptionInactive  = apperror.New(apperror.ErrState, "subscription is not active")
	ErrURLTakenByOtherUser   = apperror.New(apperror.ErrConflict, "url is already registered by another user")
	ErrActiveURLExists       = apperror.New(apperror.ErrConflict, "subscription already has an active url")
	ErrWhitelistConflict     = &apperror.PersistenceError{Op: "write whitelist", Err: errors.New("too many concurrent writers")}
	ErrMalformedSettingsBlob = apperror.New(apperror.ErrValidation, "settings option is not a JSON object")
)
