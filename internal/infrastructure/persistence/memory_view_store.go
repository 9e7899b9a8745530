package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/domain/shared"
)

// MemoryViewStore is an in-memory read model store for tests and
// single-process deployments
type MemoryViewStore struct {
	mu    sync.RWMutex
	views map[uuid.UUID]projection.OrderView
}

// NewMemoryViewStore creates a new in-memory view store
func NewMemoryViewStore() *MemoryViewStore {
	return &MemoryViewStore{
		views: make(map[uuid.UUID]projection.OrderView),
	}
}

// Get returns the view row for an aggregate, or shared.ErrNotFound
func (s *MemoryViewStore) Get(ctx context.Context, id uuid.UUID) (*projection.OrderView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := view
	return &out, nil
}

// Find returns views matching the filter, newest first, plus the total count
func (s *MemoryViewStore) Find(ctx context.Context, filter projection.ViewFilter) ([]projection.OrderView, int64, error) {
	filter.Normalize()

	s.mu.RLock()
	matched := make([]projection.OrderView, 0, len(s.views))
	for _, view := range s.views {
		if filter.CustomerID != nil && view.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && view.Status != *filter.Status {
			continue
		}
		matched = append(matched, view)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(matched) {
		return []projection.OrderView{}, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Save inserts or replaces a view row
func (s *MemoryViewStore) Save(ctx context.Context, view *projection.OrderView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[view.ID] = *view
	return nil
}

var _ projection.ViewStore = (*MemoryViewStore)(nil)
