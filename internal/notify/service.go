package notify

import (
	"context"
	"time"

	"github.com/mbd888/saaskit/internal/authz"
	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/user"
)

// Broadcaster pushes a created notification to connected clients.
// The realtime hub implements it; nil disables push.
type Broadcaster interface {
	Broadcast(orgID string, event interface{})
}

// Service creates notifications and fans them out to role groups.
type Service struct {
	store     Store
	users     user.Store
	broadcast Broadcaster
}

// NewService creates a notification service. users may be nil when owner
// fanout is not needed; broadcast may be nil.
func NewService(store Store, users user.Store, broadcast Broadcaster) *Service {
	return &Service{store: store, users: users, broadcast: broadcast}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// Notify creates a notification for a single user.
func (s *Service) Notify(ctx context.Context, orgID, userID string, typ Type, title, message string) (*Notification, error) {
	n := &Notification{
		ID:        idgen.WithPrefix("ntf_"),
		OrgID:     orgID,
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	metrics.NotificationsCreatedTotal.WithLabelValues(string(typ)).Inc()
	if s.broadcast != nil {
		s.broadcast.Broadcast(orgID, map[string]interface{}{
			"event":        "notification.created",
			"notification": n,
		})
	}
	return n, nil
}

// NotifyOwners sends the same notification to every owner of an
// organization. Used by usage alerts, billing expiry and signup welcome.
func (s *Service) NotifyOwners(ctx context.Context, orgID string, typ Type, title, message string) error {
	if s.users == nil {
		return nil
	}
	owners, err := s.users.ListByRole(ctx, orgID, authz.RoleOwner)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if _, err := s.Notify(ctx, orgID, o.ID, typ, title, message); err != nil {
			logging.L(ctx).Warn("owner notification failed",
				"org_id", orgID, "user_id", o.ID, "error", err)
		}
	}
	return nil
}

// MarkRead flips a notification to read exactly once.
func (s *Service) MarkRead(ctx context.Context, id string) (*Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	if err := s.store.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}
