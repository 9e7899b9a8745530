package order

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderledger/backend/internal/domain/shared"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusConfirmed, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Amount returns quantity times unit price
func (i OrderItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

func (i OrderItem) validate() error {
	if i.ProductID == uuid.Nil {
		return shared.NewValidationError("Product ID cannot be empty")
	}
	if i.Quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("Quantity must be positive")
	}
	if i.UnitPrice.IsNegative() {
		return shared.NewValidationError("Unit price cannot be negative")
	}
	return nil
}

// Order is the event-sourced order aggregate. Its state is never persisted
// directly; it is reconstructed by replaying the event stream. Mutation flows
// exclusively through Apply so that live handling and replay share one fold.
type Order struct {
	ID           uuid.UUID
	CustomerID   uuid.UUID
	CustomerName string
	Status       OrderStatus
	Items        []OrderItem
	TotalAmount  decimal.Decimal
	CancelReason string

	// Version is the number of events applied to this aggregate,
	// including uncommitted ones raised during the current command
	Version int64

	changes []shared.DomainEvent
}

// NewOrder creates a new order aggregate and raises OrderCreated
func NewOrder(customerID uuid.UUID, customerName string, items []OrderItem) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("Customer ID cannot be empty")
	}
	if customerName == "" {
		return nil, shared.NewValidationError("Customer name cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("Order must contain at least one item")
	}

	total := decimal.Zero
	for _, item := range items {
		if err := item.validate(); err != nil {
			return nil, err
		}
		total = total.Add(item.Amount())
	}

	o := &Order{}
	o.raise(NewOrderCreatedEvent(uuid.New(), customerID, customerName, items, total))
	return o, nil
}

// AddItem appends a line item to the order and raises OrderItemAdded.
// Items may only be added while the order is in CREATED status.
func (o *Order) AddItem(item OrderItem) error {
	if o.Status != OrderStatusCreated {
		return shared.NewInvariantViolation(fmt.Sprintf("Cannot add items to an order in %s status", o.Status))
	}
	if err := item.validate(); err != nil {
		return err
	}

	total := o.TotalAmount.Add(item.Amount())
	o.raise(NewOrderItemAddedEvent(o.ID, item, total))
	return nil
}

// Confirm transitions the order from CREATED to CONFIRMED and raises
// OrderConfirmed. Confirming an already confirmed order is an idempotent
// no-op so a command retried after losing an append race does not append
// a duplicate event.
func (o *Order) Confirm() error {
	if o.Status == OrderStatusConfirmed {
		return nil
	}
	if o.Status != OrderStatusCreated {
		return shared.NewInvariantViolation(fmt.Sprintf("Cannot confirm an order in %s status", o.Status))
	}
	if len(o.Items) == 0 {
		return shared.NewInvariantViolation("Cannot confirm an order without items")
	}

	o.raise(NewOrderConfirmedEvent(o))
	return nil
}

// Cancel cancels the order and raises OrderCancelled. Cancelling an already
// cancelled order is an idempotent no-op.
func (o *Order) Cancel(reason string) error {
	if o.Status == OrderStatusCancelled {
		return nil
	}
	if o.Status != OrderStatusCreated && o.Status != OrderStatusConfirmed {
		return shared.NewInvariantViolation(fmt.Sprintf("Cannot cancel an order in %s status", o.Status))
	}
	if reason == "" {
		return shared.NewValidationError("Cancel reason is required")
	}

	o.raise(NewOrderCancelledEvent(o, reason, o.Status == OrderStatusConfirmed))
	return nil
}

// Apply folds one event into the aggregate state. The fold is deterministic
// and free of side effects so replay reproduces state exactly.
func (o *Order) Apply(event shared.DomainEvent) error {
	switch e := event.(type) {
	case *OrderCreatedEvent:
		o.ID = e.OrderID
		o.CustomerID = e.CustomerID
		o.CustomerName = e.CustomerName
		o.Status = OrderStatusCreated
		o.Items = make([]OrderItem, 0, len(e.Items))
		for _, info := range e.Items {
			o.Items = append(o.Items, fromItemInfo(info))
		}
		o.TotalAmount = e.TotalAmount
	case *OrderItemAddedEvent:
		o.Items = append(o.Items, fromItemInfo(e.Item))
		o.TotalAmount = e.TotalAmount
	case *OrderConfirmedEvent:
		o.Status = OrderStatusConfirmed
	case *OrderCancelledEvent:
		o.Status = OrderStatusCancelled
		o.CancelReason = e.Reason
	default:
		return shared.NewCorruptStreamError(fmt.Sprintf("Unhandled event type %s in order stream", event.EventType()))
	}

	o.Version++
	return nil
}

// Replay reconstructs an order by folding its recorded event stream in
// ascending sequence order. A gap, duplicate, or out-of-order sequence is a
// fatal corruption signal, never retried.
func Replay(records []RecordedEvent) (*Order, error) {
	o := &Order{}
	for i, rec := range records {
		want := int64(i) + 1
		if rec.Sequence != want {
			return nil, shared.NewCorruptStreamError(
				fmt.Sprintf("Stream sequence mismatch: expected %d, got %d", want, rec.Sequence))
		}
		if err := o.Apply(rec.Event); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// UncommittedEvents returns the events raised since load that have not been
// appended to the store yet
func (o *Order) UncommittedEvents() []shared.DomainEvent {
	return o.changes
}

// ClearUncommittedEvents clears the pending events after a successful append
func (o *Order) ClearUncommittedEvents() {
	o.changes = nil
}

// CommittedVersion returns the stream version this aggregate was loaded at,
// which is the expected version for an optimistic append
func (o *Order) CommittedVersion() int64 {
	return o.Version - int64(len(o.changes))
}

// IsConfirmed returns true if the order is confirmed
func (o *Order) IsConfirmed() bool {
	return o.Status == OrderStatusConfirmed
}

// IsCancelled returns true if the order is cancelled
func (o *Order) IsCancelled() bool {
	return o.Status == OrderStatusCancelled
}

// raise applies a new event and records it as uncommitted. The fold cannot
// fail for events the aggregate itself just constructed.
func (o *Order) raise(event shared.DomainEvent) {
	if err := o.Apply(event); err != nil {
		panic(err)
	}
	o.changes = append(o.changes, event)
}
