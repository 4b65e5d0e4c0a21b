package billing

import (
	"context"
	"time"
)

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, orgID, id string) (*Subscription, error)
	// GetLatest returns the newest subscription for an organization.
	GetLatest(ctx context.Context, orgID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	// ListExpired returns live subscriptions whose period ended before
	// the given time, for the renewal pass.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*Subscription, error)
}
