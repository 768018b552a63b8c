package invoice

import (
	"context"

	"github.com/erp/invoicedesk/internal/domain/invoice"
)

// InvoicePage is one page of the document list
type InvoicePage struct {
	Items      []invoice.Invoice `json:"items"`
	TotalPages int               `json:"total_pages"`
	TotalItems int64             `json:"total_items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// InvoiceGateway is the data-access collaborator of the action engine.
// DocumentService implements it on the database; the HTTP client implements it remotely.
type InvoiceGateway interface {
	FetchInvoiceList(ctx context.Context, filterType invoice.Type, page, pageSize int) (*InvoicePage, error)
	FetchInvoice(ctx context.Context, id int64) (*invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, id int64, inv *invoice.Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error
	AdvanceInvoiceStatus(ctx context.Context, id int64) error
	ReturnDeposit(ctx context.Context, id int64) error
	DecidePurchaseRequest(ctx context.Context, id int64, approved bool) error
}

// Interaction asks the operator for a decision or a line of text
type Interaction interface {
	// Confirm returns false when the dialog is dismissed without an explicit choice
	Confirm(ctx context.Context, title, message string) bool
	// PromptText returns ok=false on cancel
	PromptText(ctx context.Context, title, message, placeholder string) (text string, ok bool)
}

// NotificationKind is the severity of an operator notification
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notifier delivers fire-and-forget notifications to the operator
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, message string)
}

// Refresher re-fetches the list after a successful mutation
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ActionRecorder records workflow outcomes, typically as metrics
type ActionRecorder interface {
	RecordAction(ctx context.Context, workflow string, outcome string)
}
