package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/erp/invoicedesk/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

var _ invoice.InvoiceRepository = (*GormInvoiceRepository)(nil)

// FindByID finds a document by its ID with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoice.Invoice, error) {
	var m models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindPage lists documents for an operation type or a status pseudo type
func (r *GormInvoiceRepository) FindPage(ctx context.Context, filterType invoice.Type, filter shared.Filter) ([]invoice.Invoice, int64, error) {
	scope, err := r.typeScope(filterType)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Scopes(scope).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	filter = filter.Normalize()
	sortField := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order(sortField + " " + sortOrder).
		Order("id " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	result := make([]invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// typeScope narrows a document query to a filter type.
// zero_balance selects documents referencing at least one stock item with nothing on hand.
func (r *GormInvoiceRepository) typeScope(filterType invoice.Type) (func(*gorm.DB) *gorm.DB, error) {
	switch {
	case filterType.IsOperation():
		return func(db *gorm.DB) *gorm.DB {
			return db.Where("type = ?", filterType)
		}, nil
	case filterType == invoice.PseudoZeroBalance:
		return func(db *gorm.DB) *gorm.DB {
			zero := r.db.Table("invoice_items").
				Select("invoice_items.invoice_id").
				Joins("JOIN stock_items ON stock_items.id = invoice_items.stock_item_id").
				Where("stock_items.quantity <= ?", 0)
			return db.Where("id IN (?)", zero)
		}, nil
	}
	status, ok := invoice.StatusForPseudo(filterType)
	if !ok {
		return nil, shared.NewDomainError("INVALID_FILTER_TYPE", "Unknown filter type: "+string(filterType))
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}, nil
}

// Save inserts a document when its ID is zero, otherwise updates it
// guarded by the stored version and syncs its items
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	if inv.ID == 0 {
		return r.create(ctx, inv)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ?", inv.ID, inv.Version).
			Updates(map[string]any{
				"status":         inv.Status,
				"comment":        inv.Comment,
				"machine_name":   inv.MachineName,
				"mechanism_name": inv.MechanismName,
				"employee_name":  inv.EmployeeName,
				"client_name":    inv.ClientName,
				"manager_name":   inv.ManagerName,
				"confirmed_at":   inv.ConfirmedAt,
				"version":        inv.Version + 1,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.InvoiceModel{}).Where("id = ?", inv.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		keep := make([]int64, 0, len(inv.Items))
		for _, item := range inv.Items {
			if item.ID != 0 {
				keep = append(keep, item.ID)
			}
		}
		stale := tx.Where("invoice_id = ?", inv.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}

		for i := range inv.Items {
			var im models.InvoiceItemModel
			im.FromDomain(inv.ID, &inv.Items[i])
			if err := tx.Save(&im).Error; err != nil {
				return err
			}
			inv.Items[i].ID = im.ID
		}

		inv.Version++
		inv.UpdatedAt = now
		return nil
	})
}

func (r *GormInvoiceRepository) create(ctx context.Context, inv *invoice.Invoice) error {
	if inv.Version == 0 {
		inv.Version = 1
	}
	var m models.InvoiceModel
	m.FromDomain(inv)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	inv.ID = m.ID
	inv.CreatedAt = m.CreatedAt
	inv.UpdatedAt = m.UpdatedAt
	for i := range m.Items {
		inv.Items[i].ID = m.Items[i].ID
	}
	return nil
}

// Delete removes a document and its items. The row is claimed first with a
// version and status guarded update, so a transition committed after the
// caller read the document makes the delete fail instead of racing it.
func (r *GormInvoiceRepository) Delete(ctx context.Context, id int64, version int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ? AND status NOT IN ?", id, version, invoice.DeleteBlockedStatuses()).
			Update("version", version+1)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.InvoiceModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.InvoiceModel{}).Error
	})
}
