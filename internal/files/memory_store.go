package files

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*FileUpload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*FileUpload)}
}

func (s *MemoryStore) Create(ctx context.Context, f *FileUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, orgID, id string) (*FileUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok || f.OrgID != orgID {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, f *FileUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.files[f.ID]
	if !ok || cur.OrgID != f.OrgID {
		return ErrNotFound
	}
	cp := *f
	cp.DownloadCount = cur.DownloadCount
	s.files[f.ID] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok || f.OrgID != orgID {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, orgID string, f Filter) ([]*FileUpload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FileUpload
	for _, file := range s.files {
		if file.OrgID != orgID {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(file.OriginalName), strings.ToLower(f.Query)) {
			continue
		}
		if f.ContentTypePrefix != "" && !strings.HasPrefix(file.ContentType, f.ContentTypePrefix) {
			continue
		}
		if f.IsPublic != nil && file.IsPublic != *f.IsPublic {
			continue
		}
		cp := *file
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) IncrementDownloads(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok || f.OrgID != orgID {
		return ErrNotFound
	}
	f.DownloadCount++
	return nil
}

func (s *MemoryStore) SumSizeByOrg(ctx context.Context, orgID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, f := range s.files {
		if f.OrgID == orgID {
			total += f.SizeBytes
		}
	}
	return total, nil
}
