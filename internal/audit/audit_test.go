package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/saaskit/internal/metrics"
)

// failingStore always errors on Create.
type failingStore struct {
	Store
}

func (f *failingStore) Create(_ context.Context, _ *Entry) error {
	return errors.New("disk full")
}

func TestRecorder_FillsDefaults(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store)
	ctx := context.Background()

	rec.Record(ctx, Entry{
		OrgID:        "org_1",
		ActorID:      "usr_1",
		Action:       ActionCreate,
		ResourceType: "products",
		Description:  "POST /v1/products",
	})

	entries, err := store.List(ctx, "org_1", Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.WithinDuration(t, time.Now(), entries[0].CreatedAt, time.Minute)
}

func TestRecorder_FailOpen(t *testing.T) {
	rec := NewRecorder(&failingStore{})

	// Must not panic or propagate the storage error.
	rec.Record(context.Background(), Entry{
		OrgID:  "org_1",
		Action: ActionDelete,
	})
}

func TestRecorder_OutcomeLabels(t *testing.T) {
	written := testutil.ToFloat64(metrics.AuditRecordsTotal.WithLabelValues("written"))
	dropped := testutil.ToFloat64(metrics.AuditRecordsTotal.WithLabelValues("dropped"))

	rec := NewRecorder(NewMemoryStore())
	rec.Record(context.Background(), Entry{OrgID: "org_1", Action: ActionCreate})

	failing := NewRecorder(&failingStore{})
	failing.Record(context.Background(), Entry{OrgID: "org_1", Action: ActionDelete})

	assert.Equal(t, written+1, testutil.ToFloat64(metrics.AuditRecordsTotal.WithLabelValues("written")))
	assert.Equal(t, dropped+1, testutil.ToFloat64(metrics.AuditRecordsTotal.WithLabelValues("dropped")))
}

func TestMemoryStore_ListFilters(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store)
	ctx := context.Background()
	base := time.Now()

	rec.Record(ctx, Entry{OrgID: "org_1", ActorID: "usr_1", Action: ActionCreate, ResourceType: "products", CreatedAt: base.Add(-2 * time.Hour)})
	rec.Record(ctx, Entry{OrgID: "org_1", ActorID: "usr_2", Action: ActionDelete, ResourceType: "users", CreatedAt: base.Add(-1 * time.Hour)})
	rec.Record(ctx, Entry{OrgID: "org_2", ActorID: "usr_3", Action: ActionCreate, ResourceType: "products", CreatedAt: base})

	all, err := store.List(ctx, "org_1", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byActor, err := store.List(ctx, "org_1", Filter{ActorID: "usr_1"})
	require.NoError(t, err)
	assert.Len(t, byActor, 1)

	byAction, err := store.List(ctx, "org_1", Filter{Action: ActionDelete})
	require.NoError(t, err)
	assert.Len(t, byAction, 1)

	recent, err := store.List(ctx, "org_1", Filter{Since: base.Add(-90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "usr_2", recent[0].ActorID)
}

func TestCountSince(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store)
	ctx := context.Background()

	dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	rec.Record(ctx, Entry{OrgID: "org_1", Action: ActionCreate, CreatedAt: dayStart.Add(time.Hour)})
	rec.Record(ctx, Entry{OrgID: "org_1", Action: ActionUpdate, CreatedAt: dayStart.Add(23 * time.Hour)})
	rec.Record(ctx, Entry{OrgID: "org_1", Action: ActionUpdate, CreatedAt: dayStart.Add(25 * time.Hour)}) // next day
	rec.Record(ctx, Entry{OrgID: "org_2", Action: ActionCreate, CreatedAt: dayStart.Add(time.Hour)})

	count, err := store.CountSince(ctx, "org_1", dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
