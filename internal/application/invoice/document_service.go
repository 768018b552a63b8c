package invoice

import (
	"context"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateItemRequest is a line of a new document
type CreateItemRequest struct {
	StockItemID int64           `json:"stock_item_id" binding:"required"`
	Name        string          `json:"name" binding:"required,max=200"`
	Unit        string          `json:"unit" binding:"max=20"`
	Quantity    decimal.Decimal `json:"quantity" binding:"gt=0"`
}

// CreateDocumentRequest is the input of DocumentService.Create
type CreateDocumentRequest struct {
	Type          string              `json:"type" binding:"required,invoice_type"`
	Comment       string              `json:"comment" binding:"max=2000"`
	MachineName   string              `json:"machine_name" binding:"max=200"`
	MechanismName string              `json:"mechanism_name" binding:"max=200"`
	EmployeeName  string              `json:"employee_name" binding:"max=200"`
	ClientName    string              `json:"client_name" binding:"max=200"`
	ManagerName   string              `json:"manager_name" binding:"max=200"`
	Items         []CreateItemRequest `json:"items" binding:"required,min=1,dive"`
}

// DocumentService applies lifecycle rules to persisted documents.
// It implements InvoiceGateway directly on the repository.
type DocumentService struct {
	repo   invoice.InvoiceRepository
	logger *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(repo invoice.InvoiceRepository, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, logger: logger}
}

var _ InvoiceGateway = (*DocumentService)(nil)

// Create stores a new draft document with its items
func (s *DocumentService) Create(ctx context.Context, req CreateDocumentRequest) (*invoice.Invoice, error) {
	inv, err := invoice.NewInvoice(invoice.Type(req.Type), req.EmployeeName)
	if err != nil {
		return nil, err
	}
	inv.ApplyDetails(invoice.Details{
		Comment:       req.Comment,
		MachineName:   req.MachineName,
		MechanismName: req.MechanismName,
		EmployeeName:  req.EmployeeName,
		ClientName:    req.ClientName,
		ManagerName:   req.ManagerName,
	})
	for _, item := range req.Items {
		if err := inv.AddItem(item.StockItemID, item.Name, item.Unit, item.Quantity); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("Document created",
		zap.Int64("invoice_id", inv.ID),
		zap.String("type", string(inv.Type)))
	return inv, nil
}

// FetchInvoiceList lists documents for an operation type or a status pseudo type
func (s *DocumentService) FetchInvoiceList(ctx context.Context, filterType invoice.Type, page, pageSize int) (*InvoicePage, error) {
	if !filterType.IsOperation() && !filterType.IsPseudo() {
		return nil, shared.NewDomainError("INVALID_FILTER_TYPE", "Unknown filter type: "+string(filterType))
	}
	filter := shared.Filter{Page: page, PageSize: pageSize}.Normalize()

	items, total, err := s.repo.FindPage(ctx, filterType, filter)
	if err != nil {
		return nil, err
	}
	paged := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &InvoicePage{
		Items:      paged.Items,
		TotalPages: paged.TotalPages,
		TotalItems: paged.Total,
		Page:       paged.Page,
		PageSize:   paged.PageSize,
	}, nil
}

// FetchInvoice returns the full document
func (s *DocumentService) FetchInvoice(ctx context.Context, id int64) (*invoice.Invoice, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateInvoice replaces the descriptive fields of a document.
// A non-zero Version must match the stored version.
func (s *DocumentService) UpdateInvoice(ctx context.Context, id int64, changes *invoice.Invoice) error {
	if changes == nil {
		return shared.ErrInvalidInput
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if changes.Version != 0 && changes.Version != current.Version {
		return shared.ErrConcurrencyConflict
	}
	current.ApplyDetails(changes.Details())
	return s.repo.Save(ctx, current)
}

// DeleteInvoice removes a document that is not confirmed or refunded
func (s *DocumentService) DeleteInvoice(ctx context.Context, id int64) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current.IsDeleteBlocked() {
		return shared.NewDomainError("INVALID_STATE", "Confirmed or refunded documents cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id, current.Version); err != nil {
		return err
	}
	s.logger.Info("Document deleted", zap.Int64("invoice_id", id))
	return nil
}

// AdvanceInvoiceStatus moves the document one lifecycle step forward
func (s *DocumentService) AdvanceInvoiceStatus(ctx context.Context, id int64) error {
	return s.mutate(ctx, id, "advance", func(inv *invoice.Invoice) error {
		return inv.AdvanceStatus()
	})
}

// ReturnDeposit returns every outstanding item of a confirmed deposit
func (s *DocumentService) ReturnDeposit(ctx context.Context, id int64) error {
	return s.ReturnDepositItems(ctx, id, nil)
}

// ReturnDepositItems returns the given quantities keyed by item id
func (s *DocumentService) ReturnDepositItems(ctx context.Context, id int64, quantities map[int64]decimal.Decimal) error {
	return s.mutate(ctx, id, "return_deposit", func(inv *invoice.Invoice) error {
		return inv.ReturnDeposit(quantities)
	})
}

// DecidePurchaseRequest accepts or rejects a purchase request in draft
func (s *DocumentService) DecidePurchaseRequest(ctx context.Context, id int64, approved bool) error {
	return s.mutate(ctx, id, "decide", func(inv *invoice.Invoice) error {
		return inv.Decide(approved)
	})
}

func (s *DocumentService) mutate(ctx context.Context, id int64, op string, apply func(*invoice.Invoice) error) error {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	from := inv.Status
	if err := apply(inv); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, inv); err != nil {
		return err
	}
	s.logger.Info("Document status changed",
		zap.Int64("invoice_id", id),
		zap.String("operation", op),
		zap.String("from", string(from)),
		zap.String("to", string(inv.Status)))
	return nil
}
