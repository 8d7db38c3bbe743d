package export

import "github.com/sitepass/subscription-whitelist/internal/pkg/apperror"

// Type selects which table an export covers.
type Type string

const (
	TypeSubscriptions Type = "subscriptions"
	TypeInvoices      Type = "invoices"
	TypeURLs          Type = "urls"
)

func (t Type) Valid() bool {
	return t == TypeSubscriptions || t == TypeInvoices || t == TypeURLs
}

var ErrUnknownExportType = apperror.New(apperror.ErrValidation, "export type must be one of subscriptions, invoices, urls")
