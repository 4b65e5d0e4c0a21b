package usage

import (
	"context"
	"time"
)

// Store persists usage counters.
type Store interface {
	// Increment atomically adds delta to the (org, feature, period) row,
	// creating it with the given limit if absent. Concurrent calls must
	// never lose counts.
	Increment(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, delta, limit int64) error
	Get(ctx context.Context, orgID, feature string, periodStart time.Time) (*Usage, error)
	ListByOrg(ctx context.Context, orgID string, periodStart time.Time) ([]*Usage, error)
	// SetCount overwrites the count (drift correction) and refreshes the limit.
	SetCount(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, count, limit int64) error
	// MarkAlerted sets alerted_at only when it is still null; the boolean
	// reports whether this call won the claim.
	MarkAlerted(ctx context.Context, orgID, feature string, periodStart time.Time, at time.Time) (bool, error)
}
