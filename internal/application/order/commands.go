package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderledger/backend/internal/domain/order"
)

// ItemInput carries line item data for commands
type ItemInput struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

func (i ItemInput) toDomain() order.OrderItem {
	return order.OrderItem{
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
	}
}

// CreateOrderCommand creates a new order with an initial set of items.
// CommandID doubles as the attempt token for external side effects; it is
// stable across retries of the same command.
type CreateOrderCommand struct {
	CommandID    uuid.UUID
	CustomerID   uuid.UUID
	CustomerName string
	Items        []ItemInput
}

// AddItemCommand appends one line item to an existing order
type AddItemCommand struct {
	CommandID uuid.UUID
	OrderID   uuid.UUID
	Item      ItemInput
}

// ConfirmOrderCommand confirms an existing order
type ConfirmOrderCommand struct {
	CommandID uuid.UUID
	OrderID   uuid.UUID
}

// CancelOrderCommand cancels an existing order
type CancelOrderCommand struct {
	CommandID uuid.UUID
	OrderID   uuid.UUID
	Reason    string
}

// CommandResult reports the outcome of a successful command. The query side
// may lag this version; callers must not expect read-after-write.
type CommandResult struct {
	AggregateID uuid.UUID `json:"aggregate_id"`
	Version     int64     `json:"version"`
}
