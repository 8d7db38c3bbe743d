package whitelist

import (
	"context"
	"time"
)

type UserURLRepository interface {
	// Create returns ErrActiveURLExists when the subscription already has an
	// active row.
	Create(ctx context.Context, u UserURL) (UserURL, error)

	// GetByID and GetActive return pgx.ErrNoRows when nothing matches.
	GetByID(ctx context.Context, id int64) (UserURL, error)
	GetActive(ctx context.Context, userID, subscriptionID int64) (UserURL, error)

	// FindActiveByURL lists active rows registered for url, across users.
	FindActiveByURL(ctx context.Context, url string) ([]UserURL, error)

	UpdateURL(ctx context.Context, id int64, url string) error
	SetStatus(ctx context.Context, id int64, status URLStatus) error

	ListBySubscription(ctx context.Context, subscriptionID int64) ([]UserURL, error)
	ListByUser(ctx context.Context, userID int64) ([]UserURL, error)
	List(ctx context.Context) ([]UserURL, error)

	DeleteBySubscription(ctx context.Context, subscriptionID int64) (int64, error)

	// ManagedURLs returns every URL this service has ever registered, in any
	// status.
	ManagedURLs(ctx context.Context) ([]string, error)

	// WantedURLs returns active URLs whose subscription is live at now,
	// ordered by creation.
	WantedURLs(ctx context.Context, now time.Time) ([]string, error)

	// ExpireStale marks active URLs expired when their subscription is no
	// longer live at now, returning how many rows changed.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[URLStatus]int64, error)
}

// OptionRepository stores settings blobs with optimistic concurrency.
type OptionRepository interface {
	// Get returns the option, or an Option with Version 0 and nil Value when
	// it does not exist.
	Get(ctx context.Context, name string) (Option, error)

	// CompareAndSwap writes value only when the stored version still equals
	// expectedVersion (0 = create). It returns false on a version mismatch.
	CompareAndSwap(ctx context.Context, name string, value []byte, expectedVersion int64) (bool, error)
}

// FreshOptionReader is implemented by option repositories that may serve
// stale reads. GetFresh always reads the stored option.
type FreshOptionReader interface {
	GetFresh(ctx context.Context, name string) (Option, error)
}
