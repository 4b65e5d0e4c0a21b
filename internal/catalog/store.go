package catalog

import (
	"context"

	"github.com/mbd888/saaskit/internal/pagination"
)

// Store persists the catalogue. All reads and writes are scoped to one
// organization; a lookup for another tenant's row returns ErrNotFound.
type Store interface {
	CreateCategory(ctx context.Context, cat *Category) error
	GetCategory(ctx context.Context, orgID, id string) (*Category, error)
	GetCategoryBySlug(ctx context.Context, orgID, slug string) (*Category, error)
	UpdateCategory(ctx context.Context, cat *Category) error
	DeleteCategory(ctx context.Context, orgID, id string) error
	ListCategories(ctx context.Context, orgID string) ([]*Category, error)

	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, orgID, id string) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, orgID, id string) error
	// ListProducts returns up to limit+1 rows ordered newest first so the
	// caller can compute the next cursor.
	ListProducts(ctx context.Context, orgID string, f ProductFilter, limit int, cursor *pagination.Cursor) ([]*Product, error)
	CountProducts(ctx context.Context, orgID string) (int64, error)
	// IncrementViews is a single atomic update, safe under concurrency.
	IncrementViews(ctx context.Context, orgID, id string) error

	CreateImage(ctx context.Context, img *ProductImage) error
	GetImage(ctx context.Context, productID, imageID string) (*ProductImage, error)
	UpdateImage(ctx context.Context, img *ProductImage) error
	DeleteImage(ctx context.Context, productID, imageID string) error
	ListImages(ctx context.Context, productID string) ([]*ProductImage, error)
	// ClearPrimary unsets the primary flag on every image of a product.
	ClearPrimary(ctx context.Context, productID string) error
}
