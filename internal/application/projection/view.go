package projection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderView is the denormalized read model row, one per order aggregate.
// It is owned exclusively by the projection engine; the command path never
// writes it. LastAppliedSequence is the idempotency watermark: events at or
// below it have already been folded in.
type OrderView struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID          uuid.UUID       `gorm:"type:uuid;index" json:"customer_id"`
	CustomerName        string          `gorm:"size:255" json:"customer_name"`
	Status              string          `gorm:"size:20;index" json:"status"`
	ItemCount           int             `json:"item_count"`
	TotalAmount         decimal.Decimal `gorm:"type:numeric(18,4)" json:"total_amount"`
	CancelReason        string          `gorm:"size:255" json:"cancel_reason,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	LastAppliedSequence int64           `gorm:"not null" json:"last_applied_sequence"`
}

// TableName returns the table name for the order read model
func (OrderView) TableName() string {
	return "order_views"
}

// ViewFilter holds filter criteria for listing order views
type ViewFilter struct {
	CustomerID *uuid.UUID
	Status     *string
	Page       int
	PageSize   int
}

// Normalize applies pagination defaults
func (f *ViewFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 200 {
		f.PageSize = 20
	}
}

// ViewStore persists order read model rows. Implementations must treat Save
// as an upsert keyed by the view ID.
type ViewStore interface {
	// Get returns the view row for an aggregate, or shared.ErrNotFound.
	// Absence is expected immediately after a command succeeds.
	Get(ctx context.Context, id uuid.UUID) (*OrderView, error)

	// Find returns views matching the filter plus the total match count
	Find(ctx context.Context, filter ViewFilter) ([]OrderView, int64, error)

	// Save inserts or replaces a view row
	Save(ctx context.Context, view *OrderView) error
}
