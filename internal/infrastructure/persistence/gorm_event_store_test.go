package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/orderledger/backend/internal/domain/order"
	"github.com/orderledger/backend/internal/domain/shared"
	"github.com/orderledger/backend/internal/infrastructure/event"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db
}

func setupEventStore(t *testing.T) *GormEventStore {
	t.Helper()
	store := NewGormEventStore(setupTestDB(t), event.NewOrderSerializer())
	require.NoError(t, store.Migrate())
	return store
}

func TestGormEventStore_AppendAndLoadRoundTrip(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	o := newTestOrder(t)

	appended, err := store.Append(ctx, o.ID, 0, o.UncommittedEvents())
	require.NoError(t, err)
	require.Len(t, appended, 1)

	records, err := store.LoadStream(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].Sequence)

	created, ok := records[0].Event.(*order.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, o.ID, created.OrderID)
	assert.Equal(t, o.CustomerID, created.CustomerID)
	assert.True(t, o.TotalAmount.Equal(created.TotalAmount))
}

func TestGormEventStore_StaleVersionConflicts(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	o := newTestOrder(t)

	_, err := store.Append(ctx, o.ID, 0, o.UncommittedEvents())
	require.NoError(t, err)

	_, err = store.Append(ctx, o.ID, 0, []shared.DomainEvent{order.NewOrderConfirmedEvent(o)})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	records, err := store.LoadStream(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGormEventStore_MultiEventAppendIsAtomic(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	o := newTestOrder(t)

	_, err := store.Append(ctx, o.ID, 0, o.UncommittedEvents())
	require.NoError(t, err)
	o.ClearUncommittedEvents()

	require.NoError(t, o.AddItem(testOrderItem()))
	require.NoError(t, o.Confirm())

	// Stale append of a multi-event batch must leave the stream untouched.
	_, err = store.Append(ctx, o.ID, 0, o.UncommittedEvents())
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

	records, err := store.LoadStream(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = store.Append(ctx, o.ID, 1, o.UncommittedEvents())
	require.NoError(t, err)

	records, err = store.LoadStream(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, int64(i)+1, rec.Sequence)
	}
}

func TestGormEventStore_LoadStreamFrom(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()
	o := newTestOrder(t)

	_, err := store.Append(ctx, o.ID, 0, o.UncommittedEvents())
	require.NoError(t, err)
	o.ClearUncommittedEvents()

	require.NoError(t, o.Confirm())
	_, err = store.Append(ctx, o.ID, 1, o.UncommittedEvents())
	require.NoError(t, err)

	records, err := store.LoadStreamFrom(ctx, o.ID, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].Sequence)
	assert.Equal(t, order.EventTypeOrderConfirmed, records[0].Event.EventType())
}

func TestGormEventStore_UnknownAggregateYieldsEmptyStream(t *testing.T) {
	store := setupEventStore(t)

	records, err := store.LoadStream(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGormEventStore_AggregateIDs(t *testing.T) {
	store := setupEventStore(t)
	ctx := context.Background()

	first := newTestOrder(t)
	second := newTestOrder(t)
	_, err := store.Append(ctx, first.ID, 0, first.UncommittedEvents())
	require.NoError(t, err)
	_, err = store.Append(ctx, second.ID, 0, second.UncommittedEvents())
	require.NoError(t, err)

	ids, err := store.AggregateIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)
}

func TestGormEventStore_NotifiesSubscribersAfterCommit(t *testing.T) {
	store := setupEventStore(t)
	notifier := &captureNotifier{}
	store.Subscribe(notifier)

	o := newTestOrder(t)
	_, err := store.Append(context.Background(), o.ID, 0, o.UncommittedEvents())
	require.NoError(t, err)

	require.Len(t, notifier.batches, 1)
	assert.Equal(t, int64(1), notifier.batches[0][0].Sequence)
}
