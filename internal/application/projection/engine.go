package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/domain/order"
	"github.com/orderledger/backend/internal/domain/shared"
	"github.com/orderledger/backend/internal/infrastructure/telemetry"
)

// Config holds projection engine configuration
type Config struct {
	// BufferSize is the capacity of the append-notification inbox
	BufferSize int
	// MaxAttempts is how many times one event is applied before quarantine
	MaxAttempts int
	// RetryDelay is the pause between application attempts
	RetryDelay time.Duration
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  256,
		MaxAttempts: 3,
		RetryDelay:  50 * time.Millisecond,
	}
}

type notification struct {
	aggregateID uuid.UUID
	records     []order.RecordedEvent
}

// Engine maintains the order read model as a deterministic, idempotent
// function of the event log. It consumes append notifications with
// at-least-once semantics: duplicates are dropped by the per-row watermark
// and gaps are re-fetched from the event store, which is the source of truth.
type Engine struct {
	store      order.EventStore
	views      ViewStore
	logger     *zap.Logger
	config     Config
	quarantine *Quarantine

	inbox    chan notification
	stopped  chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewEngine creates a new projection engine
func NewEngine(store order.EventStore, views ViewStore, logger *zap.Logger, config Config) *Engine {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Engine{
		store:      store,
		views:      views,
		logger:     logger,
		config:     config,
		quarantine: NewQuarantine(),
		inbox:      make(chan notification, config.BufferSize),
		stopped:    make(chan struct{}),
	}
}

// OnEventsAppended implements order.AppendNotifier. Delivery is at-least-once;
// the apply path tolerates duplicates and concurrent redelivery.
func (e *Engine) OnEventsAppended(aggregateID uuid.UUID, records []order.RecordedEvent) {
	select {
	case e.inbox <- notification{aggregateID: aggregateID, records: records}:
	case <-e.stopped:
		e.logger.Warn("append notification dropped, engine stopped",
			zap.String("aggregate_id", aggregateID.String()),
		)
	}
}

// Start catches the read model up with the event store, then starts the
// background consumer. Catch-up runs before Start returns so a restarted
// process does not serve queries from a view that misses events appended
// while it was down.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	if err := e.catchUp(ctx); err != nil {
		cancel()
		return err
	}

	e.wg.Add(1)
	go e.run(ctx)

	e.logger.Info("projection engine started",
		zap.Int("buffer_size", e.config.BufferSize),
		zap.Int("max_attempts", e.config.MaxAttempts),
	)
	return nil
}

// catchUp scans every stream for events past the row watermark and applies
// them. Notifications are only a hint; the store is the source of truth, so
// events appended with no listener running are recovered here.
func (e *Engine) catchUp(ctx context.Context) error {
	ids, err := e.store.AggregateIDs(ctx)
	if err != nil {
		return fmt.Errorf("scan streams for catch-up: %w", err)
	}

	var applied int
	for _, id := range ids {
		view, err := e.getView(ctx, id)
		if err != nil {
			return err
		}
		var watermark int64
		if view != nil {
			watermark = view.LastAppliedSequence
		}

		pending, err := e.store.LoadStreamFrom(ctx, id, watermark+1)
		if err != nil {
			return fmt.Errorf("load stream %s for catch-up: %w", id, err)
		}
		for _, rec := range pending {
			e.applyWithRetry(ctx, rec)
			applied++
		}
	}

	if applied > 0 {
		e.logger.Info("projection catch-up complete",
			zap.Int("streams", len(ids)),
			zap.Int("events_applied", applied),
		)
	}
	return nil
}

// Stop gracefully stops the engine. Safe to call more than once.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		close(e.stopped)
	})
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("projection engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-e.inbox:
			for _, rec := range n.records {
				e.applyWithRetry(ctx, rec)
			}
		}
	}
}

// applyWithRetry applies one recorded event, retrying transient failures a
// bounded number of times. An exhausted event is quarantined and skipped so
// it cannot stall the engine; stream corruption is never skipped.
func (e *Engine) applyWithRetry(ctx context.Context, rec order.RecordedEvent) {
	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		lastErr = e.Apply(ctx, rec)
		if lastErr == nil {
			return
		}
		if errors.Is(lastErr, shared.ErrCorruptStream) {
			// Corruption halts this aggregate until manual reconciliation;
			// masking it would silently diverge state.
			e.logger.Error("corrupt stream detected, projection halted for aggregate",
				zap.String("aggregate_id", rec.AggregateID.String()),
				zap.Int64("sequence", rec.Sequence),
				zap.Error(lastErr),
			)
			e.quarantine.Add(QuarantinedEvent{
				AggregateID: rec.AggregateID,
				Sequence:    rec.Sequence,
				EventType:   rec.Event.EventType(),
				Reason:      lastErr.Error(),
				At:          time.Now(),
			})
			telemetry.EventsQuarantined.Inc()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.config.RetryDelay):
		}
	}

	e.logger.Warn("event quarantined after bounded retries",
		zap.String("aggregate_id", rec.AggregateID.String()),
		zap.Int64("sequence", rec.Sequence),
		zap.String("event_type", rec.Event.EventType()),
		zap.Error(lastErr),
	)
	e.quarantine.Add(QuarantinedEvent{
		AggregateID: rec.AggregateID,
		Sequence:    rec.Sequence,
		EventType:   rec.Event.EventType(),
		Reason:      lastErr.Error(),
		At:          time.Now(),
	})
	telemetry.EventsQuarantined.Inc()
	e.skipPast(ctx, rec)
}

// Apply folds one recorded event into the read model. The watermark makes it
// idempotent: a duplicate delivery is a no-op, and a delivery that would leave
// a gap triggers a re-fetch of the missing range instead of a speculative
// apply.
func (e *Engine) Apply(ctx context.Context, rec order.RecordedEvent) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	view, err := e.getView(ctx, rec.AggregateID)
	if err != nil {
		return err
	}

	var watermark int64
	if view != nil {
		watermark = view.LastAppliedSequence
	}

	if rec.Sequence <= watermark {
		telemetry.DuplicateEventsSkipped.Inc()
		return nil
	}

	if rec.Sequence > watermark+1 {
		telemetry.GapRefetches.Inc()
		missing, err := e.store.LoadStreamFrom(ctx, rec.AggregateID, watermark+1)
		if err != nil {
			return fmt.Errorf("refetch missing range: %w", err)
		}
		for _, m := range missing {
			if view != nil && m.Sequence <= view.LastAppliedSequence {
				continue
			}
			view, err = fold(view, m)
			if err != nil {
				return err
			}
			telemetry.EventsProjected.Inc()
		}
		return e.views.Save(ctx, view)
	}

	view, err = fold(view, rec)
	if err != nil {
		return err
	}
	telemetry.EventsProjected.Inc()
	return e.views.Save(ctx, view)
}

// Rebuild replays the full stream for one aggregate from sequence 1 and
// replaces the read model row. The result is identical to incremental
// application; this is the convergence property the engine guarantees.
func (e *Engine) Rebuild(ctx context.Context, aggregateID uuid.UUID) (*OrderView, error) {
	records, err := e.store.LoadStream(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.ErrNotFound
	}

	var view *OrderView
	for i, rec := range records {
		if rec.Sequence != int64(i)+1 {
			return nil, shared.NewCorruptStreamError(
				fmt.Sprintf("Stream sequence mismatch during rebuild: expected %d, got %d", i+1, rec.Sequence))
		}
		view, err = fold(view, rec)
		if err != nil {
			return nil, err
		}
	}

	if err := e.views.Save(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Quarantined returns a snapshot of poison events skipped by the engine
func (e *Engine) Quarantined() []QuarantinedEvent {
	return e.quarantine.Entries()
}

func (e *Engine) getView(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	view, err := e.views.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return view, nil
}

// skipPast advances the watermark over a quarantined event so later events
// for the same aggregate can still be applied
func (e *Engine) skipPast(ctx context.Context, rec order.RecordedEvent) {
	view, err := e.getView(ctx, rec.AggregateID)
	if err != nil {
		e.logger.Error("failed to load view while skipping quarantined event", zap.Error(err))
		return
	}
	if view == nil {
		view = &OrderView{
			ID:        rec.AggregateID,
			CreatedAt: rec.Event.OccurredAt(),
		}
	}
	if rec.Sequence <= view.LastAppliedSequence {
		return
	}
	view.LastAppliedSequence = rec.Sequence
	view.UpdatedAt = time.Now()
	if err := e.views.Save(ctx, view); err != nil {
		e.logger.Error("failed to advance watermark past quarantined event", zap.Error(err))
	}
}

// fold maps one event type to one read-model mutation. Unknown event types
// advance the watermark without mutating the row (forward compatibility).
func fold(view *OrderView, rec order.RecordedEvent) (*OrderView, error) {
	switch ev := rec.Event.(type) {
	case *order.OrderCreatedEvent:
		view = &OrderView{
			ID:           ev.OrderID,
			CustomerID:   ev.CustomerID,
			CustomerName: ev.CustomerName,
			Status:       order.OrderStatusCreated.String(),
			ItemCount:    len(ev.Items),
			TotalAmount:  ev.TotalAmount,
			CreatedAt:    ev.OccurredAt(),
		}
	case *order.OrderItemAddedEvent:
		if view == nil {
			return nil, shared.NewCorruptStreamError("OrderItemAdded before OrderCreated in stream")
		}
		view.ItemCount++
		view.TotalAmount = ev.TotalAmount
	case *order.OrderConfirmedEvent:
		if view == nil {
			return nil, shared.NewCorruptStreamError("OrderConfirmed before OrderCreated in stream")
		}
		view.Status = order.OrderStatusConfirmed.String()
	case *order.OrderCancelledEvent:
		if view == nil {
			return nil, shared.NewCorruptStreamError("OrderCancelled before OrderCreated in stream")
		}
		view.Status = order.OrderStatusCancelled.String()
		view.CancelReason = ev.Reason
	default:
		// Unknown event types are ignored, not fatal
		if view == nil {
			view = &OrderView{
				ID:        rec.AggregateID,
				CreatedAt: rec.Event.OccurredAt(),
			}
		}
	}

	view.LastAppliedSequence = rec.Sequence
	view.UpdatedAt = rec.Event.OccurredAt()
	return view, nil
}

var _ order.AppendNotifier = (*Engine)(nil)
