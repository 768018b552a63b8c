package invoice

import (
	"context"

	"github.com/erp/invoicedesk/internal/domain/shared"
)

// InvoiceRepository defines persistence operations for documents
type InvoiceRepository interface {
	// FindByID returns shared.ErrNotFound when the document does not exist
	FindByID(ctx context.Context, id int64) (*Invoice, error)
	// FindPage lists documents for an operation type or a status pseudo type
	FindPage(ctx context.Context, filterType Type, filter shared.Filter) ([]Invoice, int64, error)
	// Save inserts a new document or updates it with optimistic locking on Version
	Save(ctx context.Context, inv *Invoice) error
	// Delete removes the document only while it still has the given version
	// and is not delete-blocked; otherwise shared.ErrConcurrencyConflict
	Delete(ctx context.Context, id int64, version int) error
}

// StockItemRepository defines persistence operations for stock items
type StockItemRepository interface {
	FindByID(ctx context.Context, id int64) (*StockItem, error)
	FindZeroBalance(ctx context.Context, filter shared.Filter) ([]StockItem, int64, error)
	Save(ctx context.Context, item *StockItem) error
}
