package org

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory organization store for demo/development.
type MemoryStore struct {
	mu    sync.RWMutex
	orgs  map[string]*Organization // by ID
	slugs map[string]string        // slug → ID
}

// NewMemoryStore creates a new in-memory organization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:  make(map[string]*Organization),
		slugs: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slugs[o.Slug]; exists {
		return ErrSlugTaken
	}

	cp := *o
	m.orgs[o.ID] = &cp
	m.slugs[o.Slug] = o.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetBySlug(_ context.Context, slug string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, ErrNotFound
	}
	o := m.orgs[id]
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.orgs[o.ID] = &cp
	return nil
}

func (m *MemoryStore) List(_ context.Context, status Status, limit, offset int) ([]*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Organization
	for _, o := range m.orgs {
		if status != "" && o.Status != status {
			continue
		}
		cp := *o
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) ListActive(ctx context.Context) ([]*Organization, error) {
	return m.List(ctx, StatusActive, 0, 0)
}

var _ Store = (*MemoryStore)(nil)
