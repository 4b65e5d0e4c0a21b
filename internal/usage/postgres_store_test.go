//go:build integration

package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/testutil"
)

func TestPostgresUsage_IncrementUpsert(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	o := &org.Organization{
		ID: "org_usage01", Name: "Acme", Slug: "acme-usage", Plan: org.PlanBasic,
		Status: org.StatusActive, Settings: org.SettingsFor(org.PlanBasic),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, org.NewPostgresStore(db).Create(ctx, o))

	store := NewPostgresStore(db)
	start, end := PeriodFor(now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Increment(ctx, o.ID, FeatureAPICalls, start, end, 1, 10000))
		}()
	}
	wg.Wait()

	u, err := store.Get(ctx, o.ID, FeatureAPICalls, start)
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Count)
	assert.Equal(t, int64(10000), u.Limit)
	assert.Nil(t, u.AlertedAt)
}

func TestPostgresUsage_MarkAlertedGuarded(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	o := &org.Organization{
		ID: "org_usage02", Name: "Acme", Slug: "acme-usage2", Plan: org.PlanBasic,
		Status: org.StatusActive, Settings: org.SettingsFor(org.PlanBasic),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, org.NewPostgresStore(db).Create(ctx, o))

	store := NewPostgresStore(db)
	start, end := PeriodFor(now)
	require.NoError(t, store.SetCount(ctx, o.ID, FeatureUsers, start, end, 4, 5))

	won, err := store.MarkAlerted(ctx, o.ID, FeatureUsers, start, now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.MarkAlerted(ctx, o.ID, FeatureUsers, start, now)
	require.NoError(t, err)
	assert.False(t, won)

	u, err := store.Get(ctx, o.ID, FeatureUsers, start)
	require.NoError(t, err)
	require.NotNil(t, u.AlertedAt)
}
