package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apporder "github.com/orderledger/backend/internal/application/order"
	approjection "github.com/orderledger/backend/internal/application/projection"
)

// OrderItemRequest is one order line in a request body
type OrderItemRequest struct {
	ProductID   string          `json:"product_id" binding:"required,uuid"`
	ProductName string          `json:"product_name" binding:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
}

// CreateOrderRequest is the body for creating an order.
// CommandID is the client attempt token; a retried request must reuse it.
type CreateOrderRequest struct {
	CommandID    string             `json:"command_id" binding:"omitempty,uuid"`
	CustomerID   string             `json:"customer_id" binding:"required,uuid"`
	CustomerName string             `json:"customer_name" binding:"required,max=255"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AddItemRequest is the body for adding an item to an order
type AddItemRequest struct {
	CommandID string           `json:"command_id" binding:"omitempty,uuid"`
	Item      OrderItemRequest `json:"item" binding:"required"`
}

// ConfirmOrderRequest is the body for confirming an order
type ConfirmOrderRequest struct {
	CommandID string `json:"command_id" binding:"omitempty,uuid"`
}

// CancelOrderRequest is the body for cancelling an order
type CancelOrderRequest struct {
	CommandID string `json:"command_id" binding:"omitempty,uuid"`
	Reason    string `json:"reason" binding:"required,max=500"`
}

// ListOrdersRequest captures query-string filters for listing orders
type ListOrdersRequest struct {
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=CREATED CONFIRMED CANCELLED"`
	Page       int    `form:"page" binding:"omitempty,gt=0"`
	PageSize   int    `form:"page_size" binding:"omitempty,gt=0,lte=100"`
}

// CommandAcceptedResponse reports the outcome of a handled command
type CommandAcceptedResponse struct {
	OrderID string `json:"order_id"`
	Version int64  `json:"version"`
}

// OrderViewResponse is the API shape of a read-model row
type OrderViewResponse struct {
	ID                  string          `json:"id"`
	CustomerID          string          `json:"customer_id"`
	CustomerName        string          `json:"customer_name"`
	Status              string          `json:"status"`
	ItemCount           int             `json:"item_count"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	CancelReason        string          `json:"cancel_reason,omitempty"`
	LastAppliedSequence int64           `json:"last_applied_sequence"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (r OrderItemRequest) ToInput() apporder.ItemInput {
	return apporder.ItemInput{
		ProductID:   uuid.MustParse(r.ProductID),
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
	}
}

// FromOrderView converts a read-model row into its API representation
func FromOrderView(v *approjection.OrderView) OrderViewResponse {
	return fromOrderView(*v)
}

func fromOrderView(v approjection.OrderView) OrderViewResponse {
	return OrderViewResponse{
		ID:                  v.ID.String(),
		CustomerID:          v.CustomerID.String(),
		CustomerName:        v.CustomerName,
		Status:              v.Status,
		ItemCount:           v.ItemCount,
		TotalAmount:         v.TotalAmount,
		CancelReason:        v.CancelReason,
		LastAppliedSequence: v.LastAppliedSequence,
		CreatedAt:           v.CreatedAt,
		UpdatedAt:           v.UpdatedAt,
	}
}

// FromOrderViews converts a page of read-model rows
func FromOrderViews(views []approjection.OrderView) []OrderViewResponse {
	out := make([]OrderViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, fromOrderView(v))
	}
	return out
}
