package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apporder "github.com/orderledger/backend/internal/application/order"
	"github.com/orderledger/backend/internal/interfaces/http/dto"
)

// OrderHandler serves the order command endpoints
type OrderHandler struct {
	BaseHandler
	commands *apporder.CommandHandler
	logger   *zap.Logger
}

// NewOrderHandler creates an order command handler
func NewOrderHandler(commands *apporder.CommandHandler, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{commands: commands, logger: logger}
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	items := make([]apporder.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.ToInput())
	}

	cmd := apporder.CreateOrderCommand{
		CommandID:    commandID(req.CommandID),
		CustomerID:   uuid.MustParse(req.CustomerID),
		CustomerName: req.CustomerName,
		Items:        items,
	}

	result, err := h.commands.HandleCreateOrder(c.Request.Context(), cmd)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, dto.CommandAcceptedResponse{
		OrderID: result.AggregateID.String(),
		Version: result.Version,
	})
}

// AddItem handles POST /api/v1/orders/:id/items
func (h *OrderHandler) AddItem(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid order id")
		return
	}

	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	cmd := apporder.AddItemCommand{
		CommandID: commandID(req.CommandID),
		OrderID:   orderID,
		Item:      req.Item.ToInput(),
	}

	result, err := h.commands.HandleAddItem(c.Request.Context(), cmd)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.CommandAcceptedResponse{
		OrderID: result.AggregateID.String(),
		Version: result.Version,
	})
}

// Confirm handles POST /api/v1/orders/:id/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid order id")
		return
	}

	var req dto.ConfirmOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.HandleBindError(c, err)
		return
	}

	cmd := apporder.ConfirmOrderCommand{
		CommandID: commandID(req.CommandID),
		OrderID:   orderID,
	}

	result, err := h.commands.HandleConfirmOrder(c.Request.Context(), cmd)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.CommandAcceptedResponse{
		OrderID: result.AggregateID.String(),
		Version: result.Version,
	})
}

// Cancel handles POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid order id")
		return
	}

	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	cmd := apporder.CancelOrderCommand{
		CommandID: commandID(req.CommandID),
		OrderID:   orderID,
		Reason:    req.Reason,
	}

	result, err := h.commands.HandleCancelOrder(c.Request.Context(), cmd)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.CommandAcceptedResponse{
		OrderID: result.AggregateID.String(),
		Version: result.Version,
	})
}

// commandID parses the client attempt token, minting a fresh one when the
// client did not supply any. Requests without a token cannot be deduplicated.
func commandID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.New()
	}
	return uuid.MustParse(raw)
}

// RegisterRoutes mounts the order command routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.POST("", h.Create)
		orders.POST("/:id/items", h.AddItem)
		orders.POST("/:id/confirm", h.Confirm)
		orders.POST("/:id/cancel", h.Cancel)
	}
}
