// Package catalog manages the per-organization product catalogue:
// categories, products and product images.
//
// Monetary amounts are integer cents. Derived pricing fields are
// computed on read and never stored.
package catalog

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrSlugTaken    = errors.New("catalog: slug already in use")
	ErrProductLimit = errors.New("catalog: product limit reached")
)

// Category groups products. Slug is unique within the organization.
type Category struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Product is one sellable item. CategoryID is optional; a product with
// a deleted category keeps selling uncategorized.
type Product struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	CostPrice   *int64    `json:"costPrice,omitempty"`
	SalePrice   *int64    `json:"salePrice,omitempty"`
	Quantity    int64     `json:"quantity"`
	IsActive    bool      `json:"isActive"`
	IsFeatured  bool      `json:"isFeatured"`
	IsDigital   bool      `json:"isDigital"`
	ViewCount   int64     `json:"viewCount"`
	Rating      float64   `json:"rating"`
	ReviewCount int64     `json:"reviewCount"`
	CreatedBy   string    `json:"createdBy"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// EffectivePrice returns the sale price when one is set and undercuts
// the list price.
func (p *Product) EffectivePrice() int64 {
	if p.SalePrice != nil && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// IsInStock reports whether the product can be sold right now. Digital
// goods never run out.
func (p *Product) IsInStock() bool {
	return p.IsDigital || p.Quantity > 0
}

// ProfitMargin returns (price - cost) / price, or 0 when no cost price
// is recorded or the price is zero.
func (p *Product) ProfitMargin() float64 {
	if p.CostPrice == nil || p.Price <= 0 {
		return 0
	}
	return float64(p.Price-*p.CostPrice) / float64(p.Price)
}

// ProductImage is one image attached to a product. At most one image
// per product is primary.
type ProductImage struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	URL       string    `json:"url"`
	AltText   string    `json:"altText,omitempty"`
	IsPrimary bool      `json:"isPrimary"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductFilter narrows product listings. Zero values are ignored;
// pointer fields distinguish unset from false. Prices are cents.
type ProductFilter struct {
	CategorySlug string
	Query        string
	MinPrice     *int64
	MaxPrice     *int64
	IsActive     *bool
	IsFeatured   *bool
	IsDigital    *bool
}
