package user

import "github.com/sitepass/subscription-whitelist/internal/pkg/apperror"

var (
	ErrUserNotFound = apperror.New(apperror.ErrNotFound, "user not found")
)
