package persistence

import (
	"context"
	"errors"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockItemRepository implements StockItemRepository using GORM
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

var _ invoice.StockItemRepository = (*GormStockItemRepository)(nil)

// FindByID finds a stock item by its ID
func (r *GormStockItemRepository) FindByID(ctx context.Context, id int64) (*invoice.StockItem, error) {
	var m models.StockItemModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindZeroBalance lists stock items with nothing on hand
func (r *GormStockItemRepository) FindZeroBalance(ctx context.Context, filter shared.Filter) ([]invoice.StockItem, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.StockItemModel{}).
		Where("quantity <= ?", 0).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	filter = filter.Normalize()
	sortField := ValidateSortField(filter.OrderBy, StockItemSortFields, "code")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.StockItemModel
	if err := r.db.WithContext(ctx).
		Where("quantity <= ?", 0).
		Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]invoice.StockItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

// Save creates or updates a stock item
func (r *GormStockItemRepository) Save(ctx context.Context, item *invoice.StockItem) error {
	var m models.StockItemModel
	m.FromDomain(item)
	db := r.db.WithContext(ctx)
	if m.ID != 0 {
		db = db.Omit("created_at")
	}
	if err := db.Save(&m).Error; err != nil {
		return err
	}
	item.ID = m.ID
	return nil
}
