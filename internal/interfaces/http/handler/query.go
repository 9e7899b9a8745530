package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/application/query"
	"github.com/orderledger/backend/internal/interfaces/http/dto"
)

// QueryHandler serves the order read endpoints. Responses come from the
// projected read model and may lag recently accepted commands.
type QueryHandler struct {
	BaseHandler
	queries *query.OrderQueryService
	logger  *zap.Logger
}

// NewQueryHandler creates an order query handler
func NewQueryHandler(queries *query.OrderQueryService, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{queries: queries, logger: logger}
}

// Get handles GET /api/v1/orders/:id
func (h *QueryHandler) Get(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid order id")
		return
	}

	view, err := h.queries.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, dto.FromOrderView(view))
}

// List handles GET /api/v1/orders
func (h *QueryHandler) List(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	filter := projection.ViewFilter{Page: req.Page, PageSize: req.PageSize}
	if req.CustomerID != "" {
		id := uuid.MustParse(req.CustomerID)
		filter.CustomerID = &id
	}
	if req.Status != "" {
		status := req.Status
		filter.Status = &status
	}
	filter.Normalize()

	views, total, err := h.queries.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, dto.FromOrderViews(views), total, filter.Page, filter.PageSize)
}

// RegisterRoutes mounts the order read routes
func (h *QueryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	{
		orders.GET("", h.List)
		orders.GET("/:id", h.Get)
	}
}
