package org

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFor_KnownPlans(t *testing.T) {
	basic := PlanFor(PlanBasic)
	assert.Equal(t, 5, basic.MaxUsers)
	assert.Equal(t, 100, basic.MaxProducts)
	assert.Equal(t, 10000, basic.APICallsPerMonth)
	assert.Equal(t, 1, basic.StorageGB)

	pro := PlanFor(PlanPro)
	assert.Equal(t, 25, pro.MaxUsers)
	assert.Equal(t, 1000, pro.MaxProducts)

	ent := PlanFor(PlanEnterprise)
	assert.Equal(t, Unlimited, ent.MaxUsers)
	assert.Equal(t, Unlimited, ent.APICallsPerMonth)
}

func TestPlanFor_UnknownFallsBackToBasic(t *testing.T) {
	cfg := PlanFor(Plan("bogus"))
	assert.Equal(t, PlanFor(PlanBasic), cfg)
}

func TestSettingsLimit(t *testing.T) {
	s := SettingsFor(PlanBasic)
	assert.Equal(t, int64(5), s.Limit(FeatureUsers))
	assert.Equal(t, int64(10000), s.Limit(FeatureAPICalls))
	assert.Equal(t, int64(1)<<30, s.Limit(FeatureStorage))
	assert.Equal(t, int64(Unlimited), s.Limit("nonsense"))

	ent := SettingsFor(PlanEnterprise)
	assert.Equal(t, int64(Unlimited), ent.Limit(FeatureProducts))
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	o := &Organization{
		ID:        "org_1",
		Name:      "Acme",
		Slug:      "acme",
		Plan:      PlanBasic,
		Status:    StatusActive,
		Settings:  SettingsFor(PlanBasic),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, o))

	got, err := store.Get(ctx, "org_1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	bySlug, err := store.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "org_1", bySlug.ID)
}

func TestMemoryStore_DuplicateSlug(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Organization{ID: "org_1", Slug: "acme"}))
	err := store.Create(ctx, &Organization{ID: "org_2", Slug: "acme"})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "org_nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListFiltersByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Organization{ID: "org_1", Slug: "a", Status: StatusActive}))
	require.NoError(t, store.Create(ctx, &Organization{ID: "org_2", Slug: "b", Status: StatusSuspended}))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, "org_1", active[0].ID)

	all, err := store.List(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// stubProvisioner records its invocation and can be told to fail.
type stubProvisioner struct {
	ownerID string
	err     error
	called  bool
	gotOrg  *Organization
}

func (s *stubProvisioner) ProvisionOwner(_ context.Context, o *Organization, _ OwnerSignup) (string, error) {
	s.called = true
	s.gotOrg = o
	return s.ownerID, s.err
}

func TestServiceSignup_ProvisionsOwner(t *testing.T) {
	store := NewMemoryStore()
	prov := &stubProvisioner{ownerID: "usr_1"}
	svc := NewService(store, prov)

	o, ownerID, err := svc.Signup(context.Background(), SignupParams{
		Name: "Acme",
		Slug: "acme",
		Plan: PlanPro,
		Owner: OwnerSignup{
			Email:    "owner@acme.test",
			Password: "correct horse",
		},
	})
	require.NoError(t, err)
	assert.True(t, prov.called)
	assert.Equal(t, "usr_1", ownerID)
	assert.Equal(t, StatusActive, o.Status)
	assert.Equal(t, 25, o.Settings.MaxUsers)
	assert.NotEmpty(t, o.ID)
}

func TestServiceSignup_ProvisionFailureSuspendsOrg(t *testing.T) {
	store := NewMemoryStore()
	prov := &stubProvisioner{err: errors.New("smtp down")}
	svc := NewService(store, prov)

	_, _, err := svc.Signup(context.Background(), SignupParams{
		Name: "Acme", Slug: "acme", Plan: PlanBasic,
	})
	require.Error(t, err)

	// Slug stays reserved but the org is no longer active.
	o, err := store.GetBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, o.Status)
}

func TestServiceChangePlan_RefreshesSettings(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)

	o, _, err := svc.Signup(context.Background(), SignupParams{Name: "Acme", Slug: "acme", Plan: PlanBasic})
	require.NoError(t, err)

	updated, err := svc.ChangePlan(context.Background(), o.ID, PlanEnterprise)
	require.NoError(t, err)
	assert.Equal(t, PlanEnterprise, updated.Plan)
	assert.Equal(t, Unlimited, updated.Settings.MaxProducts)
}

func TestServiceSetStatus(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)

	o, _, err := svc.Signup(context.Background(), SignupParams{Name: "Acme", Slug: "acme", Plan: PlanBasic})
	require.NoError(t, err)

	suspended, err := svc.SetStatus(context.Background(), o.ID, StatusSuspended)
	require.NoError(t, err)
	assert.False(t, suspended.IsActive())
}
