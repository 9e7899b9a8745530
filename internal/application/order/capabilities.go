package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/domain/shared"
)

// PaymentAuthorizer is the payment gateway capability the command handler
// calls when an order is confirmed. Implementations must be idempotent per
// attempt token: a command retried after a concurrency conflict carries the
// same token and must not charge twice.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, attemptToken string, orderID uuid.UUID, amount decimal.Decimal) error
}

// NotificationDispatcher is the notification capability. Same idempotency
// contract as PaymentAuthorizer.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, attemptToken string, orderID uuid.UUID, message string) error
}

// NoopPaymentAuthorizer approves every authorization. Stand-in for the real
// gateway adapter, which is wired outside this engine.
type NoopPaymentAuthorizer struct{}

// Authorize always succeeds
func (NoopPaymentAuthorizer) Authorize(ctx context.Context, attemptToken string, orderID uuid.UUID, amount decimal.Decimal) error {
	return nil
}

// LoggingNotificationDispatcher logs notifications instead of sending them
type LoggingNotificationDispatcher struct {
	Logger *zap.Logger
}

// Dispatch logs the notification
func (d LoggingNotificationDispatcher) Dispatch(ctx context.Context, attemptToken string, orderID uuid.UUID, message string) error {
	d.Logger.Info("notification dispatched",
		zap.String("attempt_token", attemptToken),
		zap.String("order_id", orderID.String()),
		zap.String("message", message),
	)
	return nil
}

// IdempotentPaymentAuthorizer wraps a PaymentAuthorizer with attempt-token
// deduplication so retried commands never double-charge
type IdempotentPaymentAuthorizer struct {
	inner  PaymentAuthorizer
	tokens shared.IdempotencyStore
	config shared.IdempotencyConfig
}

// NewIdempotentPaymentAuthorizer creates the deduplicating wrapper
func NewIdempotentPaymentAuthorizer(inner PaymentAuthorizer, tokens shared.IdempotencyStore, config shared.IdempotencyConfig) *IdempotentPaymentAuthorizer {
	return &IdempotentPaymentAuthorizer{inner: inner, tokens: tokens, config: config}
}

// Authorize authorizes at most once per attempt token
func (a *IdempotentPaymentAuthorizer) Authorize(ctx context.Context, attemptToken string, orderID uuid.UUID, amount decimal.Decimal) error {
	if !a.config.Enabled {
		return a.inner.Authorize(ctx, attemptToken, orderID, amount)
	}

	key := "payment:" + attemptToken
	done, err := a.tokens.IsProcessed(ctx, key)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	if err := a.inner.Authorize(ctx, attemptToken, orderID, amount); err != nil {
		return err
	}
	_, err = a.tokens.MarkProcessed(ctx, key, a.config.TTL)
	return err
}

// IdempotentNotificationDispatcher wraps a NotificationDispatcher with
// attempt-token deduplication so retried commands never double-notify
type IdempotentNotificationDispatcher struct {
	inner  NotificationDispatcher
	tokens shared.IdempotencyStore
	config shared.IdempotencyConfig
}

// NewIdempotentNotificationDispatcher creates the deduplicating wrapper
func NewIdempotentNotificationDispatcher(inner NotificationDispatcher, tokens shared.IdempotencyStore, config shared.IdempotencyConfig) *IdempotentNotificationDispatcher {
	return &IdempotentNotificationDispatcher{inner: inner, tokens: tokens, config: config}
}

// Dispatch dispatches at most once per attempt token
func (d *IdempotentNotificationDispatcher) Dispatch(ctx context.Context, attemptToken string, orderID uuid.UUID, message string) error {
	if !d.config.Enabled {
		return d.inner.Dispatch(ctx, attemptToken, orderID, message)
	}

	key := "notify:" + attemptToken
	done, err := d.tokens.IsProcessed(ctx, key)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	if err := d.inner.Dispatch(ctx, attemptToken, orderID, message); err != nil {
		return err
	}
	_, err = d.tokens.MarkProcessed(ctx, key, d.config.TTL)
	return err
}
