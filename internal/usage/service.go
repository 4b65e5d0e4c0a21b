package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/metrics"
	"github.com/mbd888/saaskit/internal/notify"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/traces"
)

// OrgDirectory is the slice of the organization store the meter needs.
type OrgDirectory interface {
	Get(ctx context.Context, id string) (*org.Organization, error)
	ListActive(ctx context.Context) ([]*org.Organization, error)
}

// CountFunc recomputes a counter from its base table. Counters that do
// not vary by period (users, products) may ignore the period bounds.
type CountFunc func(ctx context.Context, orgID string, periodStart, periodEnd time.Time) (int64, error)

// Alerter delivers threshold warnings. *notify.Service implements it.
type Alerter interface {
	NotifyOwners(ctx context.Context, orgID string, typ notify.Type, title, message string) error
}

// Service meters feature consumption per organization and calendar
// month and raises a single warning when a counter crosses 80% of its
// plan limit.
type Service struct {
	store    Store
	orgs     OrgDirectory
	alerts   Alerter
	counters map[string]CountFunc
}

// NewService creates a metering service. alerts may be nil to disable
// warnings.
func NewService(store Store, orgs OrgDirectory, alerts Alerter) *Service {
	return &Service{
		store:    store,
		orgs:     orgs,
		alerts:   alerts,
		counters: make(map[string]CountFunc),
	}
}

// RegisterCounter wires drift correction for a feature. Registered
// counters are recomputed from their base tables on every metering run.
func (s *Service) RegisterCounter(feature string, fn CountFunc) {
	s.counters[feature] = fn
}

// Increment adds delta to a feature counter for the current period. The
// limit is taken from the organization's plan settings at call time so
// plan changes show up on the next increment.
func (s *Service) Increment(ctx context.Context, orgID, feature string, delta int64) error {
	o, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return err
	}
	start, end := PeriodFor(time.Now())
	if err := s.store.Increment(ctx, orgID, feature, start, end, delta, o.Settings.Limit(feature)); err != nil {
		return err
	}
	metrics.UsageIncrementsTotal.WithLabelValues(feature).Inc()
	return nil
}

// Current returns the current-period snapshot for every metered feature
// of an organization. Features with no row yet report zero against the
// plan limit.
func (s *Service) Current(ctx context.Context, orgID string) ([]Snapshot, error) {
	o, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	start, _ := PeriodFor(time.Now())
	rows, err := s.store.ListByOrg(ctx, orgID, start)
	if err != nil {
		return nil, err
	}
	byFeature := make(map[string]*Usage, len(rows))
	for _, u := range rows {
		byFeature[u.Feature] = u
	}

	features := []string{FeatureUsers, FeatureProducts, FeatureAPICalls, FeatureStorage, FeatureDailyActivities}
	out := make([]Snapshot, 0, len(features))
	for _, f := range features {
		if u, ok := byFeature[f]; ok {
			out = append(out, Snapshot{Feature: f, Count: u.Count, Limit: u.Limit, Percentage: u.Percentage()})
			continue
		}
		out = append(out, Snapshot{Feature: f, Limit: o.Settings.Limit(f)})
	}
	return out, nil
}

// Recompute runs one metering pass for a single organization: refresh
// registered counters from their base tables, then raise any pending
// threshold alerts for the current period.
func (s *Service) Recompute(ctx context.Context, orgID string) error {
	ctx, span := traces.StartSpan(ctx, "usage.Recompute", traces.OrgID(orgID))
	defer span.End()

	o, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	start, end := PeriodFor(time.Now())
	for feature, count := range s.counters {
		n, err := count(ctx, orgID, start, end)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("count %s: %w", feature, err)
		}
		if err := s.store.SetCount(ctx, orgID, feature, start, end, n, o.Settings.Limit(feature)); err != nil {
			return fmt.Errorf("set %s: %w", feature, err)
		}
	}
	return s.alertPass(ctx, orgID, start)
}

// RecomputeAll runs Recompute for every active organization. A failing
// org is logged and skipped so one tenant cannot stall the rest.
func (s *Service) RecomputeAll(ctx context.Context) error {
	orgs, err := s.orgs.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, o := range orgs {
		if err := s.Recompute(ctx, o.ID); err != nil {
			logging.L(ctx).Error("usage recompute failed", "org_id", o.ID, "error", err)
		}
	}
	return nil
}

// alertPass warns owners once per (feature, period) when a counter
// crosses the threshold. MarkAlerted claims the row before notifying so
// concurrent passes produce at most one warning.
func (s *Service) alertPass(ctx context.Context, orgID string, periodStart time.Time) error {
	rows, err := s.store.ListByOrg(ctx, orgID, periodStart)
	if err != nil {
		return err
	}
	for _, u := range rows {
		if !u.OverThreshold() || u.AlertedAt != nil {
			continue
		}
		won, err := s.store.MarkAlerted(ctx, orgID, u.Feature, periodStart, time.Now())
		if err != nil {
			return err
		}
		if !won || s.alerts == nil {
			continue
		}
		title := "Usage limit approaching"
		msg := fmt.Sprintf("Your %s usage is at %.0f%% of the %d allowed on your plan.",
			u.Feature, u.Percentage(), u.Limit)
		if err := s.alerts.NotifyOwners(ctx, orgID, notify.TypeWarning, title, msg); err != nil {
			logging.L(ctx).Warn("usage alert delivery failed", "org_id", orgID, "feature", u.Feature, "error", err)
		}
		metrics.UsageAlertsTotal.Inc()
	}
	return nil
}
