package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/notify"
	"github.com/mbd888/saaskit/internal/org"
)

func TestPeriodFor(t *testing.T) {
	start, end := PeriodFor(time.Date(2025, 3, 17, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), end)

	// December rolls into the next year.
	start, end = PeriodFor(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestUsagePercentage(t *testing.T) {
	u := &Usage{Count: 80, Limit: 100}
	assert.Equal(t, 80.0, u.Percentage())
	assert.True(t, u.OverThreshold())

	u = &Usage{Count: 79, Limit: 100}
	assert.False(t, u.OverThreshold())

	// Unlimited features never alert.
	u = &Usage{Count: 1_000_000, Limit: 0}
	assert.Equal(t, 0.0, u.Percentage())
	assert.False(t, u.OverThreshold())
}

func TestMemoryStoreIncrementConcurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start, end := PeriodFor(time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Increment(ctx, "org_1", FeatureAPICalls, start, end, 1, 10000)
		}()
	}
	wg.Wait()

	u, err := store.Get(ctx, "org_1", FeatureAPICalls, start)
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.Count)
}

func TestMemoryStoreMarkAlertedOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start, end := PeriodFor(time.Now())
	require.NoError(t, store.Increment(ctx, "org_1", FeatureUsers, start, end, 4, 5))

	won, err := store.MarkAlerted(ctx, "org_1", FeatureUsers, start, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.MarkAlerted(ctx, "org_1", FeatureUsers, start, time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

type captureAlerter struct {
	mu    sync.Mutex
	calls []string
}

func (a *captureAlerter) NotifyOwners(ctx context.Context, orgID string, typ notify.Type, title, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, orgID)
	return nil
}

func seedOrg(t *testing.T, orgs *org.MemoryStore, plan org.Plan) *org.Organization {
	t.Helper()
	o := &org.Organization{
		ID:       idgen.WithPrefix("org_"),
		Name:     "Acme",
		Slug:     idgen.WithPrefix("acme-"),
		Plan:     plan,
		Status:   org.StatusActive,
		Settings: org.SettingsFor(plan),
	}
	require.NoError(t, orgs.Create(context.Background(), o))
	return o
}

func TestServiceIncrementUsesPlanLimit(t *testing.T) {
	orgs := org.NewMemoryStore()
	o := seedOrg(t, orgs, org.PlanBasic)
	store := NewMemoryStore()
	svc := NewService(store, orgs, nil)
	ctx := context.Background()

	require.NoError(t, svc.Increment(ctx, o.ID, FeatureProducts, 1))

	start, _ := PeriodFor(time.Now())
	u, err := store.Get(ctx, o.ID, FeatureProducts, start)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Count)
	assert.Equal(t, int64(100), u.Limit)

	// A plan change shows up on the next increment.
	o.Plan = org.PlanPro
	o.Settings = org.SettingsFor(org.PlanPro)
	require.NoError(t, orgs.Update(ctx, o))
	require.NoError(t, svc.Increment(ctx, o.ID, FeatureProducts, 1))

	u, err = store.Get(ctx, o.ID, FeatureProducts, start)
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.Count)
	assert.Equal(t, int64(1000), u.Limit)
}

func TestServiceCurrentReportsZeroRows(t *testing.T) {
	orgs := org.NewMemoryStore()
	o := seedOrg(t, orgs, org.PlanBasic)
	svc := NewService(NewMemoryStore(), orgs, nil)

	snaps, err := svc.Current(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 5)

	byFeature := make(map[string]Snapshot)
	for _, s := range snaps {
		byFeature[s.Feature] = s
	}
	assert.Equal(t, int64(0), byFeature[FeatureUsers].Count)
	assert.Equal(t, int64(5), byFeature[FeatureUsers].Limit)
	assert.Equal(t, int64(10000), byFeature[FeatureAPICalls].Limit)
	assert.Equal(t, int64(0), byFeature[FeatureDailyActivities].Limit)
}

func TestRecomputeDriftCorrectionAndAlert(t *testing.T) {
	orgs := org.NewMemoryStore()
	o := seedOrg(t, orgs, org.PlanBasic)
	store := NewMemoryStore()
	alerts := &captureAlerter{}
	svc := NewService(store, orgs, alerts)
	svc.RegisterCounter(FeatureUsers, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		return 4, nil // 4 of 5 is past the threshold
	})
	ctx := context.Background()

	require.NoError(t, svc.Recompute(ctx, o.ID))

	start, _ := PeriodFor(time.Now())
	u, err := store.Get(ctx, o.ID, FeatureUsers, start)
	require.NoError(t, err)
	assert.Equal(t, int64(4), u.Count)
	require.NotNil(t, u.AlertedAt)
	require.Len(t, alerts.calls, 1)

	// A second pass is a no-op: AlertedAt suppresses the warning.
	require.NoError(t, svc.Recompute(ctx, o.ID))
	assert.Len(t, alerts.calls, 1)
}

func TestRecomputeBelowThresholdNoAlert(t *testing.T) {
	orgs := org.NewMemoryStore()
	o := seedOrg(t, orgs, org.PlanBasic)
	store := NewMemoryStore()
	alerts := &captureAlerter{}
	svc := NewService(store, orgs, alerts)
	svc.RegisterCounter(FeatureUsers, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		return 2, nil
	})

	require.NoError(t, svc.Recompute(context.Background(), o.ID))
	assert.Empty(t, alerts.calls)
}

func TestRecomputeAllIsolatesFailures(t *testing.T) {
	orgs := org.NewMemoryStore()
	bad := seedOrg(t, orgs, org.PlanBasic)
	good := seedOrg(t, orgs, org.PlanBasic)
	store := NewMemoryStore()
	svc := NewService(store, orgs, nil)
	svc.RegisterCounter(FeatureUsers, func(ctx context.Context, orgID string, _, _ time.Time) (int64, error) {
		if orgID == bad.ID {
			return 0, errors.New("base table unavailable")
		}
		return 3, nil
	})
	ctx := context.Background()

	require.NoError(t, svc.RecomputeAll(ctx))

	start, _ := PeriodFor(time.Now())
	u, err := store.Get(ctx, good.ID, FeatureUsers, start)
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.Count)

	_, err = store.Get(ctx, bad.ID, FeatureUsers, start)
	assert.ErrorIs(t, err, ErrNotFound)
}
