package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/domain/order"
	"github.com/orderledger/backend/internal/domain/shared"
	"github.com/orderledger/backend/internal/infrastructure/telemetry"
)

// RetryConfig bounds the optimistic retry loop on the write path
type RetryConfig struct {
	// MaxRetries is how many times a conflicted append is retried
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
	}
}

// CommandHandler orchestrates one command against one order aggregate:
// load stream, replay, invoke behavior, append with the version read at load.
// Its only side effect on the consistency-critical path is a single atomic
// append; it never writes the read model and never waits for projections.
type CommandHandler struct {
	store         order.EventStore
	payments      PaymentAuthorizer
	notifications NotificationDispatcher
	logger        *zap.Logger
	config        RetryConfig
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	store order.EventStore,
	payments PaymentAuthorizer,
	notifications NotificationDispatcher,
	logger *zap.Logger,
	config RetryConfig,
) *CommandHandler {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultRetryConfig().BaseBackoff
	}
	return &CommandHandler{
		store:         store,
		payments:      payments,
		notifications: notifications,
		logger:        logger,
		config:        config,
	}
}

// HandleCreateOrder creates a new order. Creation targets a fresh aggregate
// at version 0, so there is no conflicting writer to retry against.
func (h *CommandHandler) HandleCreateOrder(ctx context.Context, cmd CreateOrderCommand) (result *CommandResult, err error) {
	defer func() { h.observe("create_order", err) }()

	items := make([]order.OrderItem, len(cmd.Items))
	for i, item := range cmd.Items {
		items[i] = item.toDomain()
	}

	o, err := order.NewOrder(cmd.CustomerID, cmd.CustomerName, items)
	if err != nil {
		return nil, err
	}

	if _, err = h.store.Append(ctx, o.ID, 0, o.UncommittedEvents()); err != nil {
		return nil, err
	}
	o.ClearUncommittedEvents()

	h.dispatch(ctx, attemptToken(cmd.CommandID), o.ID, "order created")
	return &CommandResult{AggregateID: o.ID, Version: o.Version}, nil
}

// HandleAddItem appends a line item to an existing order
func (h *CommandHandler) HandleAddItem(ctx context.Context, cmd AddItemCommand) (result *CommandResult, err error) {
	defer func() { h.observe("add_item", err) }()

	return h.execute(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.AddItem(cmd.Item.toDomain())
	}, nil)
}

// HandleConfirmOrder confirms an order. Payment authorization happens before
// the append, keyed by the command's attempt token, so losing the append race
// and retrying cannot charge twice. A retry that observes the order already
// confirmed is a no-op and appends nothing.
func (h *CommandHandler) HandleConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (result *CommandResult, err error) {
	defer func() { h.observe("confirm_order", err) }()

	token := attemptToken(cmd.CommandID)
	result, err = h.execute(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.Confirm()
	}, func(ctx context.Context, o *order.Order) error {
		return h.payments.Authorize(ctx, token, o.ID, o.TotalAmount)
	})
	if err != nil {
		return nil, err
	}

	h.dispatch(ctx, token, cmd.OrderID, "order confirmed")
	return result, nil
}

// HandleCancelOrder cancels an order
func (h *CommandHandler) HandleCancelOrder(ctx context.Context, cmd CancelOrderCommand) (result *CommandResult, err error) {
	defer func() { h.observe("cancel_order", err) }()

	token := attemptToken(cmd.CommandID)
	result, err = h.execute(ctx, cmd.OrderID, func(o *order.Order) error {
		return o.Cancel(cmd.Reason)
	}, nil)
	if err != nil {
		return nil, err
	}

	h.dispatch(ctx, token, cmd.OrderID, "order cancelled")
	return result, nil
}

// execute runs the load-replay-mutate-append cycle with bounded retries on
// concurrency conflicts. Business rules are re-validated against fresh state
// on every attempt. Nothing is appended until the atomic append succeeds, so
// abandoning the loop at any retry boundary leaves no side effects.
func (h *CommandHandler) execute(
	ctx context.Context,
	orderID uuid.UUID,
	mutate func(*order.Order) error,
	preAppend func(context.Context, *order.Order) error,
) (*CommandResult, error) {
	backoff := h.config.BaseBackoff

	for attempt := 0; ; attempt++ {
		records, err := h.store.LoadStream(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, shared.ErrNotFound
		}

		o, err := order.Replay(records)
		if err != nil {
			return nil, err
		}

		if err := mutate(o); err != nil {
			return nil, err
		}

		changes := o.UncommittedEvents()
		if len(changes) == 0 {
			// The behavior was an idempotent no-op against fresh state
			return &CommandResult{AggregateID: o.ID, Version: o.Version}, nil
		}

		if preAppend != nil {
			if err := preAppend(ctx, o); err != nil {
				return nil, fmt.Errorf("pre-append capability call: %w", err)
			}
		}

		if _, err := h.store.Append(ctx, orderID, o.CommittedVersion(), changes); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				telemetry.ConcurrencyConflicts.Inc()
				if attempt < h.config.MaxRetries {
					telemetry.CommandRetries.Inc()
					h.logger.Debug("append conflict, retrying against fresh state",
						zap.String("order_id", orderID.String()),
						zap.Int("attempt", attempt+1),
						zap.Duration("backoff", backoff),
					)
					if err := sleepCtx(ctx, backoff); err != nil {
						return nil, err
					}
					backoff *= 2
					if backoff > h.config.MaxBackoff {
						backoff = h.config.MaxBackoff
					}
					continue
				}
			}
			return nil, err
		}

		o.ClearUncommittedEvents()
		telemetry.EventsAppended.Add(float64(len(changes)))
		return &CommandResult{AggregateID: o.ID, Version: o.Version}, nil
	}
}

// dispatch sends a notification best-effort; a notification failure never
// fails a command that has already appended its events
func (h *CommandHandler) dispatch(ctx context.Context, token string, orderID uuid.UUID, message string) {
	if h.notifications == nil {
		return
	}
	if err := h.notifications.Dispatch(ctx, token, orderID, message); err != nil {
		h.logger.Warn("notification dispatch failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}

func (h *CommandHandler) observe(command string, err error) {
	telemetry.CommandsHandled.WithLabelValues(command, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, shared.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrCorruptStream):
		return "corrupt"
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return "rejected"
		}
		return "error"
	}
}

func attemptToken(commandID uuid.UUID) string {
	if commandID == uuid.Nil {
		commandID = uuid.New()
	}
	return commandID.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
