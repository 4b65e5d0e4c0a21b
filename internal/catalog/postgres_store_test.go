//go:build integration

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/testutil"
)

func TestPostgresCatalog_ProductLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	o := &org.Organization{
		ID: "org_cat01", Name: "Acme", Slug: "acme-cat", Plan: org.PlanBasic,
		Status: org.StatusActive, Settings: org.SettingsFor(org.PlanBasic),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, org.NewPostgresStore(db).Create(ctx, o))

	store := NewPostgresStore(db)
	cat := &Category{
		ID: idgen.WithPrefix("cat_"), OrgID: o.ID, Name: "Gadgets", Slug: "gadgets",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateCategory(ctx, cat))

	dup := &Category{
		ID: idgen.WithPrefix("cat_"), OrgID: o.ID, Name: "Dup", Slug: "gadgets",
		CreatedAt: now, UpdatedAt: now,
	}
	assert.ErrorIs(t, store.CreateCategory(ctx, dup), ErrSlugTaken)

	p := &Product{
		ID: idgen.WithPrefix("prd_"), OrgID: o.ID, CategoryID: cat.ID,
		Name: "Widget", SKU: newSKU(), Price: 1999, Quantity: 5,
		IsActive: true, CreatedBy: "usr_1", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateProduct(ctx, p))

	require.NoError(t, store.IncrementViews(ctx, o.ID, p.ID))
	require.NoError(t, store.IncrementViews(ctx, o.ID, p.ID))

	got, err := store.GetProduct(ctx, o.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
	assert.Equal(t, cat.ID, got.CategoryID)

	// Deleting the category detaches the product.
	require.NoError(t, store.DeleteCategory(ctx, o.ID, cat.ID))
	got, err = store.GetProduct(ctx, o.ID, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	// Tenant scoping holds at the SQL layer.
	_, err = store.GetProduct(ctx, "org_other", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	byPrice, err := store.ListProducts(ctx, o.ID, ProductFilter{MinPrice: int64p(1000)}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, byPrice, 1)
}
