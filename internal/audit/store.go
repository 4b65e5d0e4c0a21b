package audit

import (
	"context"
	"time"
)

// Store persists activity log entries.
type Store interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, orgID string, f Filter) ([]*Entry, error)
	Delete(ctx context.Context, id string) error
	// CountSince returns the number of entries for an org created in
	// [since, until). Used by the daily activity rollup.
	CountSince(ctx context.Context, orgID string, since, until time.Time) (int64, error)
}
