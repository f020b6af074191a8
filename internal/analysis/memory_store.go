package analysis

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report // chain:address → report
}

// NewMemoryStore creates an in-memory report store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

func (s *MemoryStore) Upsert(ctx context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := report.Chain + ":" + report.Address
	if existing, ok := s.reports[key]; ok {
		// Creation time survives re-analysis.
		r := *report
		r.CreatedAt = existing.CreatedAt
		s.reports[key] = &r
		return nil
	}
	r := *report
	s.reports[key] = &r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, chain, address string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[chain+":"+address]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*Report, error) {
	return s.ListRecentBefore(ctx, time.Time{}, "", limit)
}

func (s *MemoryStore) ListRecentBefore(ctx context.Context, updatedAt time.Time, key string, limit int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		if !updatedAt.IsZero() {
			if r.UpdatedAt.After(updatedAt) {
				continue
			}
			if r.UpdatedAt.Equal(updatedAt) && PageKey(r) >= key {
				continue
			}
		}
		copied := *r
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return PageKey(all[i]) > PageKey(all[j])
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
