package query

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderledger/backend/internal/application/projection"
)

// OrderQueryService serves the denormalized order view. It reads only the
// read model store; it has no access to the event store or the aggregate.
// Absence of a row is an expected consequence of eventual consistency right
// after a command succeeds, so NotFound is a value here, not a failure.
type OrderQueryService struct {
	views  projection.ViewStore
	logger *zap.Logger
}

// NewOrderQueryService creates a new query service
func NewOrderQueryService(views projection.ViewStore, logger *zap.Logger) *OrderQueryService {
	return &OrderQueryService{
		views:  views,
		logger: logger,
	}
}

// GetByID returns the view for one order, or shared.ErrNotFound
func (s *OrderQueryService) GetByID(ctx context.Context, id uuid.UUID) (*projection.OrderView, error) {
	return s.views.Get(ctx, id)
}

// List returns views matching the filter with the total match count
func (s *OrderQueryService) List(ctx context.Context, filter projection.ViewFilter) ([]projection.OrderView, int64, error) {
	return s.views.Find(ctx, filter)
}
