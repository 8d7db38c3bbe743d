package report

import "time"

// HousekeepingSummary is the daily maintenance report sent to the admin.
type HousekeepingSummary struct {
	GeneratedAt            time.Time        `json:"generated_at"`
	CancelledSubscriptions int64            `json:"cancelled_subscriptions"`
	ExpiredURLs            int64            `json:"expired_urls"`
	Subscriptions          map[string]int64 `json:"subscriptions"`
	Invoices               map[string]int64 `json:"invoices"`
	URLs                   map[string]int64 `json:"urls"`
	WhitelistEntries       int              `json:"whitelist_entries"`
}
