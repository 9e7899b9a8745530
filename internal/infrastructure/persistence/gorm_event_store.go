package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderledger/backend/internal/domain/order"
	"github.com/orderledger/backend/internal/domain/shared"
	"github.com/orderledger/backend/internal/infrastructure/event"
)

// eventRecord is the persistence model for one stored event. The unique index
// on (aggregate_id, sequence) is what makes the optimistic append check hold
// under concurrent writers.
type eventRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_events_stream,priority:1"`
	Sequence    int64     `gorm:"not null;uniqueIndex:idx_order_events_stream,priority:2"`
	EventID     uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType   string    `gorm:"size:100;not null"`
	Payload     []byte    `gorm:"not null"`
	OccurredAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

// TableName returns the table name for stored events
func (eventRecord) TableName() string {
	return "order_events"
}

// GormEventStore implements the event store on a relational database using
// GORM. Events are serialized to JSON payloads through the codec registry.
type GormEventStore struct {
	db         *gorm.DB
	serializer *event.Serializer

	notifyMu  sync.RWMutex
	notifiers []order.AppendNotifier
}

// NewGormEventStore creates a new GORM-backed event store
func NewGormEventStore(db *gorm.DB, serializer *event.Serializer) *GormEventStore {
	return &GormEventStore{
		db:         db,
		serializer: serializer,
	}
}

// Migrate creates the event table and its uniqueness constraint
func (s *GormEventStore) Migrate() error {
	return s.db.AutoMigrate(&eventRecord{})
}

// Subscribe registers a notifier for appended events
func (s *GormEventStore) Subscribe(n order.AppendNotifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// LoadStream returns the full ordered stream for an aggregate.
// An unknown aggregate yields an empty stream.
func (s *GormEventStore) LoadStream(ctx context.Context, aggregateID uuid.UUID) ([]order.RecordedEvent, error) {
	return s.LoadStreamFrom(ctx, aggregateID, 1)
}

// LoadStreamFrom returns the ordered events with sequence >= fromSequence
func (s *GormEventStore) LoadStreamFrom(ctx context.Context, aggregateID uuid.UUID, fromSequence int64) ([]order.RecordedEvent, error) {
	var rows []eventRecord
	if err := s.db.WithContext(ctx).
		Where("aggregate_id = ? AND sequence >= ?", aggregateID, fromSequence).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stream: %w", err)
	}

	records := make([]order.RecordedEvent, len(rows))
	for i, row := range rows {
		ev, err := s.serializer.Deserialize(row.EventType, row.Payload)
		if err != nil {
			return nil, fmt.Errorf("deserialize event %d of stream %s: %w", row.Sequence, aggregateID, err)
		}
		records[i] = order.RecordedEvent{
			AggregateID: row.AggregateID,
			Sequence:    row.Sequence,
			Event:       ev,
		}
	}
	return records, nil
}

// AggregateIDs returns the ID of every aggregate with at least one event
func (s *GormEventStore) AggregateIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).
		Model(&eventRecord{}).
		Distinct("aggregate_id").
		Pluck("aggregate_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list aggregate ids: %w", err)
	}
	return ids, nil
}

// Append atomically appends events iff the stream currently has exactly
// expectedVersion events. The transactional version check catches stale
// writers; the unique (aggregate_id, sequence) index catches the race
// between the check and the insert. Either way the loser gets
// shared.ErrConcurrencyConflict and nothing is written.
func (s *GormEventStore) Append(ctx context.Context, aggregateID uuid.UUID, expectedVersion int64, events []shared.DomainEvent) ([]order.RecordedEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	rows := make([]eventRecord, len(events))
	appended := make([]order.RecordedEvent, len(events))
	for i, ev := range events {
		payload, err := s.serializer.Serialize(ev)
		if err != nil {
			return nil, fmt.Errorf("serialize event: %w", err)
		}
		seq := expectedVersion + int64(i) + 1
		rows[i] = eventRecord{
			AggregateID: aggregateID,
			Sequence:    seq,
			EventID:     ev.EventID(),
			EventType:   ev.EventType(),
			Payload:     payload,
			OccurredAt:  ev.OccurredAt(),
		}
		appended[i] = order.RecordedEvent{
			AggregateID: aggregateID,
			Sequence:    seq,
			Event:       ev,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&eventRecord{}).
			Where("aggregate_id = ?", aggregateID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&current).Error; err != nil {
			return fmt.Errorf("read stream version: %w", err)
		}
		if current != expectedVersion {
			return shared.ErrConcurrencyConflict
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, shared.ErrConcurrencyConflict
		}
		return nil, err
	}

	s.notify(aggregateID, appended)
	return appended, nil
}

func (s *GormEventStore) notify(aggregateID uuid.UUID, records []order.RecordedEvent) {
	s.notifyMu.RLock()
	defer s.notifyMu.RUnlock()
	for _, n := range s.notifiers {
		n.OnEventsAppended(aggregateID, records)
	}
}

var _ order.EventStore = (*GormEventStore)(nil)
