package whitelist

import (
	"context"
	"time"
)

// Reconciler owns every read and write of the shared whitelist.
type Reconciler interface {
	ReconcileFull(ctx context.Context, now time.Time) error
	Submit(ctx context.Context, userID, subscriptionID int64, rawURL string, now time.Time) SubmitResult
	ExpireSweep(ctx context.Context, now time.Time) (int64, error)
	RemoveURLs(ctx context.Context, urls []string, now time.Time) error
	RemoveURL(ctx context.Context, urlID int64, now time.Time) error
	Whitelist(ctx context.Context) ([]string, error)
	ListForUser(ctx context.Context, userID int64) ([]UserURL, error)
}
