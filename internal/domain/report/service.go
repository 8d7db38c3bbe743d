package report

import (
	"context"
	"time"
)

// ReportService builds operational summaries.
type ReportService interface {
	// Snapshot counts rows by status and measures the whitelist. The
	// housekeeping counters are filled in by the caller.
	Snapshot(ctx context.Context, now time.Time) (HousekeepingSummary, error)
}
