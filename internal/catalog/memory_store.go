package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mbd888/saaskit/internal/pagination"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]*Category
	products   map[string]*Product
	images     map[string]*ProductImage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]*Category),
		products:   make(map[string]*Product),
		images:     make(map[string]*ProductImage),
	}
}

func (s *MemoryStore) CreateCategory(ctx context.Context, cat *Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.OrgID == cat.OrgID && c.Slug == cat.Slug {
			return ErrSlugTaken
		}
	}
	cp := *cat
	s.categories[cat.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, orgID, id string) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok || c.OrgID != orgID {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetCategoryBySlug(ctx context.Context, orgID, slug string) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.OrgID == orgID && c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateCategory(ctx context.Context, cat *Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[cat.ID]
	if !ok || cur.OrgID != cat.OrgID {
		return ErrNotFound
	}
	for _, c := range s.categories {
		if c.ID != cat.ID && c.OrgID == cat.OrgID && c.Slug == cat.Slug {
			return ErrSlugTaken
		}
	}
	cp := *cat
	s.categories[cat.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.OrgID != orgID {
		return ErrNotFound
	}
	delete(s.categories, id)
	// Products keep selling uncategorized.
	for _, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	return nil
}

func (s *MemoryStore) ListCategories(ctx context.Context, orgID string) ([]*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Category
	for _, c := range s.categories {
		if c.OrgID == orgID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, orgID, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.OrgID != orgID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok || cur.OrgID != p.OrgID {
		return ErrNotFound
	}
	cp := *p
	cp.ViewCount = cur.ViewCount
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.OrgID != orgID {
		return ErrNotFound
	}
	delete(s.products, id)
	for imgID, img := range s.images {
		if img.ProductID == id {
			delete(s.images, imgID)
		}
	}
	return nil
}

func (s *MemoryStore) matches(p *Product, f ProductFilter) bool {
	if f.CategorySlug != "" {
		cat, ok := s.categories[p.CategoryID]
		if !ok || cat.Slug != f.CategorySlug {
			return false
		}
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.IsFeatured != nil && p.IsFeatured != *f.IsFeatured {
		return false
	}
	if f.IsDigital != nil && p.IsDigital != *f.IsDigital {
		return false
	}
	return true
}

func (s *MemoryStore) ListProducts(ctx context.Context, orgID string, f ProductFilter, limit int, cursor *pagination.Cursor) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*Product
	for _, p := range s.products {
		if p.OrgID != orgID || !s.matches(p, f) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	// Newest first; ID breaks creation time ties.
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	out := make([]*Product, 0, limit+1)
	for _, p := range all {
		if cursor != nil {
			if p.CreatedAt.After(cursor.CreatedAt) ||
				(p.CreatedAt.Equal(cursor.CreatedAt) && p.ID >= cursor.ID) {
				continue
			}
		}
		out = append(out, p)
		if len(out) > limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) CountProducts(ctx context.Context, orgID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, p := range s.products {
		if p.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IncrementViews(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.OrgID != orgID {
		return ErrNotFound
	}
	p.ViewCount++
	return nil
}

func (s *MemoryStore) CreateImage(ctx context.Context, img *ProductImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *MemoryStore) GetImage(ctx context.Context, productID, imageID string) (*ProductImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[imageID]
	if !ok || img.ProductID != productID {
		return nil, ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (s *MemoryStore) UpdateImage(ctx context.Context, img *ProductImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.images[img.ID]
	if !ok || cur.ProductID != img.ProductID {
		return ErrNotFound
	}
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteImage(ctx context.Context, productID, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[imageID]
	if !ok || img.ProductID != productID {
		return ErrNotFound
	}
	delete(s.images, imageID)
	return nil
}

func (s *MemoryStore) ListImages(ctx context.Context, productID string) ([]*ProductImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ProductImage
	for _, img := range s.images {
		if img.ProductID == productID {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ClearPrimary(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range s.images {
		if img.ProductID == productID {
			img.IsPrimary = false
		}
	}
	return nil
}
