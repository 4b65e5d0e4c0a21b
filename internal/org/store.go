package org

import "context"

// Store persists organization data.
type Store interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	List(ctx context.Context, status Status, limit, offset int) ([]*Organization, error)
	ListActive(ctx context.Context) ([]*Organization, error)
}
