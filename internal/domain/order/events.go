package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderledger/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated   = "OrderCreated"
	EventTypeOrderItemAdded = "OrderItemAdded"
	EventTypeOrderConfirmed = "OrderConfirmed"
	EventTypeOrderCancelled = "OrderCancelled"
)

// OrderItemInfo carries line item data inside events
type OrderItemInfo struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderCreatedEvent is raised when a new order is created
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID       `json:"order_id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Items        []OrderItemInfo `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(orderID, customerID uuid.UUID, customerName string, items []OrderItem, total decimal.Decimal) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, orderID),
		OrderID:         orderID,
		CustomerID:      customerID,
		CustomerName:    customerName,
		Items:           toItemInfos(items),
		TotalAmount:     total,
	}
}

// EventType returns the event type name
func (e *OrderCreatedEvent) EventType() string {
	return EventTypeOrderCreated
}

// OrderItemAddedEvent is raised when a line item is added to an order
type OrderItemAddedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	Item        OrderItemInfo   `json:"item"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewOrderItemAddedEvent creates a new OrderItemAddedEvent
// The total amount carried is the order total after the item is applied
func NewOrderItemAddedEvent(orderID uuid.UUID, item OrderItem, total decimal.Decimal) *OrderItemAddedEvent {
	return &OrderItemAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderItemAdded, AggregateTypeOrder, orderID),
		OrderID:         orderID,
		Item:            toItemInfo(item),
		TotalAmount:     total,
	}
}

// EventType returns the event type name
func (e *OrderItemAddedEvent) EventType() string {
	return EventTypeOrderItemAdded
}

// OrderConfirmedEvent is raised when an order is confirmed
type OrderConfirmedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewOrderConfirmedEvent creates a new OrderConfirmedEvent
func NewOrderConfirmedEvent(o *Order) *OrderConfirmedEvent {
	return &OrderConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderConfirmed, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		TotalAmount:     o.TotalAmount,
	}
}

// EventType returns the event type name
func (e *OrderConfirmedEvent) EventType() string {
	return EventTypeOrderConfirmed
}

// OrderCancelledEvent is raised when an order is cancelled
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID `json:"order_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	Reason       string    `json:"reason"`
	WasConfirmed bool      `json:"was_confirmed"`
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(o *Order, reason string, wasConfirmed bool) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		Reason:          reason,
		WasConfirmed:    wasConfirmed,
	}
}

// EventType returns the event type name
func (e *OrderCancelledEvent) EventType() string {
	return EventTypeOrderCancelled
}

func toItemInfo(item OrderItem) OrderItemInfo {
	return OrderItemInfo{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Amount:      item.Quantity.Mul(item.UnitPrice),
	}
}

func toItemInfos(items []OrderItem) []OrderItemInfo {
	infos := make([]OrderItemInfo, len(items))
	for i, item := range items {
		infos[i] = toItemInfo(item)
	}
	return infos
}

func fromItemInfo(info OrderItemInfo) OrderItem {
	return OrderItem{
		ProductID:   info.ProductID,
		ProductName: info.ProductName,
		Quantity:    info.Quantity,
		UnitPrice:   info.UnitPrice,
	}
}
