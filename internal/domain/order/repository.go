package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/orderledger/backend/internal/domain/shared"
)

// RecordedEvent is an event as stored in a stream, with its per-aggregate
// sequence number. Sequence numbers start at 1 and are gap-free within a
// stream. Equality is by (AggregateID, Sequence).
type RecordedEvent struct {
	AggregateID uuid.UUID
	Sequence    int64
	Event       shared.DomainEvent
}

// Validate checks the structural invariants of a recorded event
func (r RecordedEvent) Validate() error {
	if r.AggregateID == uuid.Nil {
		return shared.NewValidationError("Recorded event must carry an aggregate ID")
	}
	if r.Sequence < 1 {
		return shared.NewValidationError("Sequence number must be at least 1")
	}
	if r.Event == nil {
		return shared.NewValidationError("Recorded event must carry an event")
	}
	return nil
}

// EventStore is the append-only per-aggregate event log. It is the sole
// arbiter of write ordering: Append for the same aggregate is atomic and
// mutually exclusive across callers, while different aggregates never block
// each other.
type EventStore interface {
	// LoadStream returns the full ordered stream for an aggregate.
	// An unknown aggregate yields an empty stream, not an error.
	LoadStream(ctx context.Context, aggregateID uuid.UUID) ([]RecordedEvent, error)

	// LoadStreamFrom returns the ordered events with sequence >= fromSequence
	LoadStreamFrom(ctx context.Context, aggregateID uuid.UUID, fromSequence int64) ([]RecordedEvent, error)

	// AggregateIDs returns the ID of every aggregate with at least one
	// stored event. Consumers use it to find streams that advanced while
	// they were not listening.
	AggregateIDs(ctx context.Context) ([]uuid.UUID, error)

	// Append atomically appends events with consecutive sequence numbers
	// starting at expectedVersion+1, iff the stream currently has exactly
	// expectedVersion events. A stale expectedVersion fails with
	// shared.ErrConcurrencyConflict and appends nothing.
	Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, events []shared.DomainEvent) ([]RecordedEvent, error)
}

// AppendNotifier receives at-least-once notification of appended events.
// Delivery may duplicate or arrive concurrently; consumers must deduplicate.
type AppendNotifier interface {
	OnEventsAppended(aggregateID uuid.UUID, records []RecordedEvent)
}
