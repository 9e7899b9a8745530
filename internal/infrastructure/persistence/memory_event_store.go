package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/orderledger/backend/internal/domain/order"
	"github.com/orderledger/backend/internal/domain/shared"
)

// stream holds one aggregate's events behind its own mutex so appends to
// different aggregates never block each other
type stream struct {
	mu      sync.Mutex
	records []order.RecordedEvent
}

// MemoryEventStore is an in-memory append-only event store with optimistic
// concurrency. Suitable for tests and single-process deployments.
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]*stream

	notifyMu  sync.RWMutex
	notifiers []order.AppendNotifier
}

// NewMemoryEventStore creates a new in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[uuid.UUID]*stream),
	}
}

// Subscribe registers a notifier for appended events. Notification is
// synchronous and at-least-once from the consumer's point of view.
func (s *MemoryEventStore) Subscribe(n order.AppendNotifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// LoadStream returns the full ordered stream for an aggregate.
// An unknown aggregate yields an empty stream.
func (s *MemoryEventStore) LoadStream(ctx context.Context, aggregateID uuid.UUID) ([]order.RecordedEvent, error) {
	return s.LoadStreamFrom(ctx, aggregateID, 1)
}

// LoadStreamFrom returns the ordered events with sequence >= fromSequence
func (s *MemoryEventStore) LoadStreamFrom(ctx context.Context, aggregateID uuid.UUID, fromSequence int64) ([]order.RecordedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	st, ok := s.streams[aggregateID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]order.RecordedEvent, 0, len(st.records))
	for _, rec := range st.records {
		if rec.Sequence >= fromSequence {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AggregateIDs returns the ID of every aggregate with at least one event
func (s *MemoryEventStore) AggregateIDs(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(s.streams))
	for id, st := range s.streams {
		st.mu.Lock()
		empty := len(st.records) == 0
		st.mu.Unlock()
		if !empty {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Append atomically appends events iff the stream length equals
// expectedVersion. Losers of the race receive shared.ErrConcurrencyConflict
// and the stream is left untouched.
func (s *MemoryEventStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, events []shared.DomainEvent) ([]order.RecordedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	st := s.getOrCreate(aggregateID)

	st.mu.Lock()
	if int64(len(st.records)) != expectedVersion {
		st.mu.Unlock()
		return nil, shared.ErrConcurrencyConflict
	}

	appended := make([]order.RecordedEvent, len(events))
	for i, ev := range events {
		appended[i] = order.RecordedEvent{
			AggregateID: aggregateID,
			Sequence:    expectedVersion + int64(i) + 1,
			Event:       ev,
		}
	}
	st.records = append(st.records, appended...)
	st.mu.Unlock()

	s.notify(aggregateID, appended)
	return appended, nil
}

func (s *MemoryEventStore) getOrCreate(aggregateID uuid.UUID) *stream {
	s.mu.RLock()
	st, ok := s.streams[aggregateID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.streams[aggregateID]; ok {
		return st
	}
	st = &stream{}
	s.streams[aggregateID] = st
	return st
}

func (s *MemoryEventStore) notify(aggregateID uuid.UUID, records []order.RecordedEvent) {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		n.OnEventsAppended(aggregateID, records)
	}
}

var _ order.EventStore = (*MemoryEventStore)(nil)
