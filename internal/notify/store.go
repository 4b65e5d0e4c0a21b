package notify

import "context"

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Get(ctx context.Context, id string) (*Notification, error)
	List(ctx context.Context, orgID string, f Filter) ([]*Notification, error)
	CountUnread(ctx context.Context, orgID, userID string) (int, error)
	Update(ctx context.Context, n *Notification) error
	Delete(ctx context.Context, id string) error
}
