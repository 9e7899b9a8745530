package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/interfaces/http/dto"
)

// AdminHandler exposes projection maintenance endpoints
type AdminHandler struct {
	BaseHandler
	engine *projection.Engine
	logger *zap.Logger
}

// NewAdminHandler creates a projection admin handler
func NewAdminHandler(engine *projection.Engine, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, logger: logger}
}

// Quarantined handles GET /api/v1/admin/projections/quarantine
func (h *AdminHandler) Quarantined(c *gin.Context) {
	h.Success(c, h.engine.Quarantined())
}

// Rebuild handles POST /api/v1/admin/projections/orders/:id/rebuild.
// It re-folds the full event stream into a fresh read model row.
func (h *AdminHandler) Rebuild(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid order id")
		return
	}

	view, err := h.engine.Rebuild(c.Request.Context(), orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.logger.Info("projection rebuilt",
		zap.String("order_id", orderID.String()),
		zap.Int64("last_applied_sequence", view.LastAppliedSequence))
	h.Success(c, dto.FromOrderView(view))
}

// RegisterRoutes mounts the projection admin routes
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin/projections")
	{
		admin.GET("/quarantine", h.Quarantined)
		admin.POST("/orders/:id/rebuild", h.Rebuild)
	}
}
