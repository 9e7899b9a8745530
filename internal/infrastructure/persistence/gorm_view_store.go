package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orderledger/backend/internal/application/projection"
	"github.com/orderledger/backend/internal/domain/shared"
)

// GormViewStore implements the read model store using GORM
type GormViewStore struct {
	db *gorm.DB
}

// NewGormViewStore creates a new GORM-backed view store
func NewGormViewStore(db *gorm.DB) *GormViewStore {
	return &GormViewStore{db: db}
}

// Migrate creates the read model table
func (s *GormViewStore) Migrate() error {
	return s.db.AutoMigrate(&projection.OrderView{})
}

// Get returns the view row for an aggregate, or shared.ErrNotFound
func (s *GormViewStore) Get(ctx context.Context, id uuid.UUID) (*projection.OrderView, error) {
	var view projection.OrderView
	if err := s.db.WithContext(ctx).First(&view, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("get view: %w", err)
	}
	return &view, nil
}

// Find returns views matching the filter, newest first, plus the total count
func (s *GormViewStore) Find(ctx context.Context, filter projection.ViewFilter) ([]projection.OrderView, int64, error) {
	filter.Normalize()

	query := s.db.WithContext(ctx).Model(&projection.OrderView{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count views: %w", err)
	}

	var views []projection.OrderView
	if err := query.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&views).Error; err != nil {
		return nil, 0, fmt.Errorf("find views: %w", err)
	}

	return views, total, nil
}

// Save inserts or replaces a view row keyed by its ID
func (s *GormViewStore) Save(ctx context.Context, view *projection.OrderView) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(view).Error
}

var _ projection.ViewStore = (*GormViewStore)(nil)
