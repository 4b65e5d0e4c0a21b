package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/notify"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/traces"

	"go.opentelemetry.io/otel/attribute"
)

// Alerter delivers billing notifications. *notify.Service implements it.
type Alerter interface {
	NotifyOwners(ctx context.Context, orgID string, typ notify.Type, title, message string) error
}

// Service owns subscription lifecycle: plan changes, cancellation and
// the renewal pass.
type Service struct {
	store   Store
	orgs    *org.Service
	alerts  Alerter
	gateway Gateway
}

// NewService creates a billing service. alerts and gateway may be nil.
func NewService(store Store, orgs *org.Service, alerts Alerter, gateway Gateway) *Service {
	return &Service{store: store, orgs: orgs, alerts: alerts, gateway: gateway}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// Subscribe moves an organization onto a plan. Any previous
// subscription is cancelled; the newest row is the live one.
func (s *Service) Subscribe(ctx context.Context, orgID string, plan org.Plan) (*Subscription, error) {
	ctx, span := traces.StartSpan(ctx, "billing.Subscribe",
		traces.OrgID(orgID), attribute.String("plan", string(plan)))
	defer span.End()

	if prev, err := s.store.GetLatest(ctx, orgID); err == nil && prev.IsActive() {
		prev.Status = StatusCancelled
		prev.UpdatedAt = time.Now()
		if err := s.store.Update(ctx, prev); err != nil {
			return nil, err
		}
		if s.gateway != nil && prev.StripeSubscriptionID != "" {
			if err := s.gateway.CancelSubscription(ctx, prev.StripeSubscriptionID); err != nil {
				logging.L(ctx).Warn("stripe cancel failed", "org_id", orgID, "error", err)
			}
		}
	}

	o, err := s.orgs.ChangePlan(ctx, orgID, plan)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if s.gateway != nil && o.StripeCustomerID == "" {
		customerID, err := s.gateway.EnsureCustomer(ctx, o)
		if err != nil {
			logging.L(ctx).Warn("stripe customer creation failed", "org_id", orgID, "error", err)
		} else {
			o.StripeCustomerID = customerID
			o.UpdatedAt = time.Now()
			if err := s.orgs.Store().Update(ctx, o); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now()
	sub := &Subscription{
		ID:                 idgen.WithPrefix("sub_"),
		OrgID:              orgID,
		Plan:               plan,
		Status:             StatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(renewalPeriod),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logging.L(ctx).Info("subscription created", "subscription_id", sub.ID, "org_id", orgID, "plan", string(plan))
	return sub, nil
}

// Current returns the organization's live subscription.
func (s *Service) Current(ctx context.Context, orgID string) (*Subscription, error) {
	return s.store.GetLatest(ctx, orgID)
}

// Cancel flags the live subscription to lapse at period end. The org
// keeps its plan until then.
func (s *Service) Cancel(ctx context.Context, orgID string) (*Subscription, error) {
	sub, err := s.store.GetLatest(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}
	sub.CancelAtPeriodEnd = true
	sub.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("subscription cancellation scheduled",
		"subscription_id", sub.ID, "org_id", orgID, "period_end", sub.CurrentPeriodEnd)
	return sub, nil
}

// Resume clears a pending cancellation before the period ends.
func (s *Service) Resume(ctx context.Context, orgID string) (*Subscription, error) {
	sub, err := s.store.GetLatest(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !sub.CancelAtPeriodEnd {
		return sub, nil
	}
	sub.CancelAtPeriodEnd = false
	sub.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// expiryBatch bounds one renewal pass.
const expiryBatch = 100

// ProcessExpired handles every subscription whose period has lapsed:
// scheduled cancellations become final, everything else rolls forward
// one period. One bad subscription is logged and skipped.
func (s *Service) ProcessExpired(ctx context.Context) error {
	subs, err := s.store.ListExpired(ctx, time.Now(), expiryBatch)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := s.expire(ctx, sub); err != nil {
			logging.L(ctx).Error("subscription expiry failed",
				"subscription_id", sub.ID, "org_id", sub.OrgID, "error", err)
		}
	}
	return nil
}

func (s *Service) expire(ctx context.Context, sub *Subscription) error {
	now := time.Now()
	if sub.CancelAtPeriodEnd {
		sub.Status = StatusCancelled
		sub.UpdatedAt = now
		if err := s.store.Update(ctx, sub); err != nil {
			return err
		}
		metrics.SubscriptionsExpiredTotal.WithLabelValues("cancelled").Inc()
		if s.gateway != nil && sub.StripeSubscriptionID != "" {
			if err := s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
				logging.L(ctx).Warn("stripe cancel failed", "org_id", sub.OrgID, "error", err)
			}
		}
		if s.alerts != nil {
			msg := fmt.Sprintf("Your %s subscription ended on %s.", sub.Plan, sub.CurrentPeriodEnd.Format("2006-01-02"))
			if err := s.alerts.NotifyOwners(ctx, sub.OrgID, notify.TypeWarning, "Subscription ended", msg); err != nil {
				logging.L(ctx).Warn("billing notification failed", "org_id", sub.OrgID, "error", err)
			}
		}
		logging.L(ctx).Info("subscription cancelled", "subscription_id", sub.ID, "org_id", sub.OrgID)
		return nil
	}

	// Auto-renew: roll the period forward from the old boundary so a
	// late pass does not shift the billing anchor.
	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = sub.CurrentPeriodEnd.Add(renewalPeriod)
	sub.UpdatedAt = now
	if err := s.store.Update(ctx, sub); err != nil {
		return err
	}
	metrics.SubscriptionsExpiredTotal.WithLabelValues("renewed").Inc()
	logging.L(ctx).Info("subscription renewed",
		"subscription_id", sub.ID, "org_id", sub.OrgID, "period_end", sub.CurrentPeriodEnd)
	return nil
}
