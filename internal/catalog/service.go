package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
	"github.com/mbd888/saaskit/internal/logging"
	"github.com/mbd888/saaskit/internal/org"
	"github.com/mbd888/saaskit/internal/validation"
)

// Meter records feature consumption. *usage.Service implements it; nil
// disables metering.
type Meter interface {
	Increment(ctx context.Context, orgID, feature string, delta int64) error
}

// CategoryParams is the input to category create and update.
type CategoryParams struct {
	Name        string
	Slug        string
	Description string
	IsActive    *bool
}

// ProductParams is the input to product create and update. Pointer
// fields left nil on update keep the stored value.
type ProductParams struct {
	CategoryID  string
	Name        string
	Description string
	Price       int64
	CostPrice   *int64
	SalePrice   *int64
	Quantity    int64
	IsActive    *bool
	IsFeatured  *bool
	IsDigital   *bool
}

// Service owns catalogue lifecycle: slug handling, SKU generation, plan
// limits and the primary image invariant.
type Service struct {
	store Store
	orgs  org.Store
	meter Meter
}

// NewService creates a catalogue service. orgs may be nil to skip
// plan-limit enforcement (tests); meter may be nil.
func NewService(store Store, orgs org.Store, meter Meter) *Service {
	return &Service{store: store, orgs: orgs, meter: meter}
}

// Store exposes the underlying store for read paths in handlers.
func (s *Service) Store() Store { return s.store }

// CreateCategory adds a category. An empty slug is derived from the name.
func (s *Service) CreateCategory(ctx context.Context, orgID string, params CategoryParams) (*Category, error) {
	slug := params.Slug
	if slug == "" {
		slug = params.Name
	}
	now := time.Now()
	cat := &Category{
		ID:          idgen.WithPrefix("cat_"),
		OrgID:       orgID,
		Name:        params.Name,
		Slug:        validation.NormalizeSlug(slug),
		Description: params.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.IsActive != nil {
		cat.IsActive = *params.IsActive
	}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// UpdateCategory applies non-zero params to an existing category.
func (s *Service) UpdateCategory(ctx context.Context, orgID, id string, params CategoryParams) (*Category, error) {
	cat, err := s.store.GetCategory(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if params.Name != "" {
		cat.Name = params.Name
	}
	if params.Slug != "" {
		cat.Slug = validation.NormalizeSlug(params.Slug)
	}
	if params.Description != "" {
		cat.Description = params.Description
	}
	if params.IsActive != nil {
		cat.IsActive = *params.IsActive
	}
	cat.UpdatedAt = time.Now()
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// newSKU generates a stock keeping unit. SKUs are server-owned and never
// accepted from clients.
func newSKU() string {
	return "SKU-" + strings.ToUpper(idgen.Hex(5))
}

// CreateProduct adds a product under the organization's plan cap and
// meters the products counter.
func (s *Service) CreateProduct(ctx context.Context, orgID, actorID string, params ProductParams) (*Product, error) {
	if s.orgs != nil {
		o, err := s.orgs.Get(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if max := o.Settings.MaxProducts; max > 0 {
			count, err := s.store.CountProducts(ctx, orgID)
			if err != nil {
				return nil, err
			}
			if count >= int64(max) {
				return nil, ErrProductLimit
			}
		}
	}
	if params.CategoryID != "" {
		if _, err := s.store.GetCategory(ctx, orgID, params.CategoryID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	p := &Product{
		ID:          idgen.WithPrefix("prd_"),
		OrgID:       orgID,
		CategoryID:  params.CategoryID,
		Name:        params.Name,
		SKU:         newSKU(),
		Description: params.Description,
		Price:       params.Price,
		CostPrice:   params.CostPrice,
		SalePrice:   params.SalePrice,
		Quantity:    params.Quantity,
		IsActive:    true,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if params.IsActive != nil {
		p.IsActive = *params.IsActive
	}
	if params.IsFeatured != nil {
		p.IsFeatured = *params.IsFeatured
	}
	if params.IsDigital != nil {
		p.IsDigital = *params.IsDigital
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("product created", "product_id", p.ID, "org_id", orgID, "sku", p.SKU)
	if s.meter != nil {
		if err := s.meter.Increment(ctx, orgID, org.FeatureProducts, 1); err != nil {
			logging.L(ctx).Warn("product metering failed", "org_id", orgID, "error", err)
		}
	}
	return p, nil
}

// UpdateProduct applies params to an existing product. Price, quantity
// and flags always come from params; zero is a valid price.
func (s *Service) UpdateProduct(ctx context.Context, orgID, id, actorID string, params ProductParams) (*Product, error) {
	p, err := s.store.GetProduct(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if params.CategoryID != "" && params.CategoryID != p.CategoryID {
		if _, err := s.store.GetCategory(ctx, orgID, params.CategoryID); err != nil {
			return nil, err
		}
	}
	if params.CategoryID != "" {
		p.CategoryID = params.CategoryID
	}
	if params.Name != "" {
		p.Name = params.Name
	}
	if params.Description != "" {
		p.Description = params.Description
	}
	p.Price = params.Price
	p.CostPrice = params.CostPrice
	p.SalePrice = params.SalePrice
	p.Quantity = params.Quantity
	if params.IsActive != nil {
		p.IsActive = *params.IsActive
	}
	if params.IsFeatured != nil {
		p.IsFeatured = *params.IsFeatured
	}
	if params.IsDigital != nil {
		p.IsDigital = *params.IsDigital
	}
	p.UpdatedBy = actorID
	p.UpdatedAt = time.Now()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct removes a product and its images, then decrements the
// products counter.
func (s *Service) DeleteProduct(ctx context.Context, orgID, id string) error {
	if err := s.store.DeleteProduct(ctx, orgID, id); err != nil {
		return err
	}
	if s.meter != nil {
		if err := s.meter.Increment(ctx, orgID, org.FeatureProducts, -1); err != nil {
			logging.L(ctx).Warn("product metering failed", "org_id", orgID, "error", err)
		}
	}
	return nil
}

// RecordView bumps the product view counter.
func (s *Service) RecordView(ctx context.Context, orgID, id string) error {
	return s.store.IncrementViews(ctx, orgID, id)
}

// AddImage attaches an image to a product. A new primary image demotes
// the current one.
func (s *Service) AddImage(ctx context.Context, orgID, productID string, img ProductImage) (*ProductImage, error) {
	if _, err := s.store.GetProduct(ctx, orgID, productID); err != nil {
		return nil, err
	}
	if img.IsPrimary {
		if err := s.store.ClearPrimary(ctx, productID); err != nil {
			return nil, err
		}
	}
	img.ID = idgen.WithPrefix("img_")
	img.ProductID = productID
	img.CreatedAt = time.Now()
	if err := s.store.CreateImage(ctx, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// SetPrimaryImage promotes one image, demoting whichever held the flag.
func (s *Service) SetPrimaryImage(ctx context.Context, orgID, productID, imageID string) (*ProductImage, error) {
	if _, err := s.store.GetProduct(ctx, orgID, productID); err != nil {
		return nil, err
	}
	img, err := s.store.GetImage(ctx, productID, imageID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClearPrimary(ctx, productID); err != nil {
		return nil, err
	}
	img.IsPrimary = true
	if err := s.store.UpdateImage(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// DeleteImage removes an image from a product.
func (s *Service) DeleteImage(ctx context.Context, orgID, productID, imageID string) error {
	if _, err := s.store.GetProduct(ctx, orgID, productID); err != nil {
		return err
	}
	return s.store.DeleteImage(ctx, productID, imageID)
}
