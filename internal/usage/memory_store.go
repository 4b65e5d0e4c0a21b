package usage

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/saaskit/internal/idgen"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*Usage // orgID|feature|periodStart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Usage)}
}

func key(orgID, feature string, periodStart time.Time) string {
	return orgID + "|" + feature + "|" + periodStart.UTC().Format(time.RFC3339)
}

func (s *MemoryStore) Increment(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, delta, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(orgID, feature, periodStart)
	if u, ok := s.rows[k]; ok {
		u.Count += delta
		u.Limit = limit
		u.UpdatedAt = time.Now().UTC()
		return nil
	}
	now := time.Now().UTC()
	s.rows[k] = &Usage{
		ID:          idgen.WithPrefix("usg_"),
		OrgID:       orgID,
		Feature:     feature,
		PeriodStart: periodStart.UTC(),
		PeriodEnd:   periodEnd.UTC(),
		Count:       delta,
		Limit:       limit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, orgID, feature string, periodStart time.Time) (*Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.rows[key(orgID, feature, periodStart)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) ListByOrg(ctx context.Context, orgID string, periodStart time.Time) ([]*Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Usage
	start := periodStart.UTC()
	for _, u := range s.rows {
		if u.OrgID == orgID && u.PeriodStart.Equal(start) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetCount(ctx context.Context, orgID, feature string, periodStart, periodEnd time.Time, count, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(orgID, feature, periodStart)
	if u, ok := s.rows[k]; ok {
		u.Count = count
		u.Limit = limit
		u.UpdatedAt = time.Now().UTC()
		return nil
	}
	now := time.Now().UTC()
	s.rows[k] = &Usage{
		ID:          idgen.WithPrefix("usg_"),
		OrgID:       orgID,
		Feature:     feature,
		PeriodStart: periodStart.UTC(),
		PeriodEnd:   periodEnd.UTC(),
		Count:       count,
		Limit:       limit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (s *MemoryStore) MarkAlerted(ctx context.Context, orgID, feature string, periodStart time.Time, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[key(orgID, feature, periodStart)]
	if !ok {
		return false, ErrNotFound
	}
	if u.AlertedAt != nil {
		return false, nil
	}
	t := at.UTC()
	u.AlertedAt = &t
	u.UpdatedAt = time.Now().UTC()
	return true, nil
}
