package event

import (
	"github.com/orderledger/backend/internal/domain/order"
)

// NewOrderSerializer returns a serializer with every order stream event type
// registered. The variant set is closed; a stored payload with a type outside
// this registry fails deserialization.
func NewOrderSerializer() *Serializer {
	s := NewSerializer()
	s.Register(order.EventTypeOrderCreated, &order.OrderCreatedEvent{})
	s.Register(order.EventTypeOrderItemAdded, &order.OrderItemAddedEvent{})
	s.Register(order.EventTypeOrderConfirmed, &order.OrderConfirmedEvent{})
	s.Register(order.EventTypeOrderCancelled, &order.OrderCancelledEvent{})
	return s
}
