package invoice

import (
	"strings"
	"time"

	"github.com/erp/invoicedesk/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Item is a line of a document referencing a stock item
type Item struct {
	ID               int64           `json:"id"`
	StockItemID      int64           `json:"stock_item_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	Location         string          `json:"location,omitempty"`
}

// Outstanding returns the quantity not yet returned
func (i *Item) Outstanding() decimal.Decimal {
	remaining := i.Quantity.Sub(i.ReturnedQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsFullyReturned returns true if the whole quantity is back
func (i *Item) IsFullyReturned() bool {
	return i.ReturnedQuantity.GreaterThanOrEqual(i.Quantity)
}

// Invoice is a persisted commercial document.
// Status is the single source of truth; display status is derived on demand.
type Invoice struct {
	ID            int64      `json:"id"`
	Type          Type       `json:"type"`
	Status        Status     `json:"status"`
	Comment       string     `json:"comment"`
	MachineName   string     `json:"machine_name,omitempty"`
	MechanismName string     `json:"mechanism_name,omitempty"`
	EmployeeName  string     `json:"employee_name,omitempty"`
	ClientName    string     `json:"client_name,omitempty"`
	ManagerName   string     `json:"manager_name,omitempty"`
	Items         []Item     `json:"items"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version"`
}

// NewInvoice creates a draft document of an operation type
func NewInvoice(t Type, employeeName string) (*Invoice, error) {
	if !t.IsOperation() {
		return nil, shared.NewDomainError("INVALID_TYPE", "Unknown document type: "+string(t))
	}
	now := time.Now()
	return &Invoice{
		Type:         t,
		Status:       StatusDraft,
		EmployeeName: employeeName,
		Items:        make([]Item, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}

// AddItem adds a line to a draft document
func (inv *Invoice) AddItem(stockItemID int64, name, unit string, quantity decimal.Decimal) error {
	if inv.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Items can only be added to draft documents")
	}
	if name == "" {
		return shared.NewDomainError("INVALID_ITEM_NAME", "Item name cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	inv.Items = append(inv.Items, Item{
		StockItemID:      stockItemID,
		Name:             name,
		Unit:             unit,
		Quantity:         quantity,
		ReturnedQuantity: decimal.Zero,
	})
	inv.touch()
	return nil
}

// Display returns the derived display label and category
func (inv *Invoice) Display() DisplayStatus {
	return Describe(inv.Status)
}

// Category returns the derived presentation category
func (inv *Invoice) Category() Category {
	return CategoryOf(inv.Status)
}

// IsPurchaseRequest returns true for purchase request documents
func (inv *Invoice) IsPurchaseRequest() bool {
	return inv.Type == TypePurchaseRequest
}

// IsDeposit returns true for deposit documents
func (inv *Invoice) IsDeposit() bool {
	return inv.Type == TypeDeposit
}

// DeleteBlockedStatuses lists the statuses that forbid deletion
func DeleteBlockedStatuses() []Status {
	return []Status{StatusConfirmed, StatusReturned}
}

// IsDeleteBlocked returns true once the document is confirmed or refunded
func (inv *Invoice) IsDeleteBlocked() bool {
	return inv.Status == StatusConfirmed || inv.Status == StatusReturned
}

// AdvanceStatus moves the document one lifecycle step forward
func (inv *Invoice) AdvanceStatus() error {
	switch inv.Status {
	case StatusDraft:
		switch {
		case inv.IsPurchaseRequest():
			inv.Status = StatusAccepted
		case inv.Type.requiresAccreditation():
			inv.Status = StatusAccreditation
		default:
			inv.confirm()
		}
	case StatusAccreditation:
		inv.confirm()
	default:
		return shared.NewDomainError("INVALID_STATE", "Cannot advance a document in status "+string(inv.Status))
	}
	inv.touch()
	return nil
}

func (inv *Invoice) confirm() {
	now := time.Now()
	inv.Status = StatusConfirmed
	inv.ConfirmedAt = &now
}

// ReturnDeposit records returned quantities on a confirmed deposit.
// A nil map returns everything outstanding.
func (inv *Invoice) ReturnDeposit(quantities map[int64]decimal.Decimal) error {
	if !inv.IsDeposit() {
		return shared.NewDomainError("INVALID_STATE", "Only deposit documents can be returned")
	}
	if inv.Status != StatusConfirmed && inv.Status != StatusPartiallyReturned {
		return shared.NewDomainError("INVALID_STATE", "Deposit must be confirmed before it can be returned")
	}

	for id, qty := range quantities {
		if qty.IsNegative() {
			return shared.NewDomainError("INVALID_QUANTITY", "Returned quantity cannot be negative")
		}
		item := inv.item(id)
		if item == nil {
			return shared.NewDomainError("ITEM_NOT_FOUND", "Item not found in document")
		}
		if qty.GreaterThan(item.Outstanding()) {
			return shared.NewDomainError("INVALID_QUANTITY", "Returned quantity exceeds outstanding quantity for "+item.Name)
		}
	}

	for i := range inv.Items {
		item := &inv.Items[i]
		back := item.Outstanding()
		if quantities != nil {
			qty, ok := quantities[item.ID]
			if !ok {
				continue
			}
			back = qty
		}
		item.ReturnedQuantity = item.ReturnedQuantity.Add(back)
	}

	inv.Status = StatusReturned
	for i := range inv.Items {
		if !inv.Items[i].IsFullyReturned() {
			inv.Status = StatusPartiallyReturned
			break
		}
	}
	inv.touch()
	return nil
}

// Decide records the draft-stage decision on a purchase request
func (inv *Invoice) Decide(approved bool) error {
	if !inv.IsPurchaseRequest() {
		return shared.NewDomainError("INVALID_STATE", "Only purchase requests can be decided")
	}
	if inv.Status != StatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Purchase request has already been decided")
	}
	if approved {
		inv.Status = StatusAccepted
	} else {
		inv.Status = StatusRejected
	}
	inv.touch()
	return nil
}

// MergeComment appends a note to the comment field
func (inv *Invoice) MergeComment(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if strings.TrimSpace(inv.Comment) == "" {
		inv.Comment = note
	} else {
		inv.Comment = inv.Comment + "\n" + note
	}
	inv.touch()
}

// Details holds the descriptive, editable fields of a document
type Details struct {
	Comment       string
	MachineName   string
	MechanismName string
	EmployeeName  string
	ClientName    string
	ManagerName   string
}

// ApplyDetails replaces the descriptive fields; type, status and items are not editable
func (inv *Invoice) ApplyDetails(d Details) {
	inv.Comment = d.Comment
	inv.MachineName = d.MachineName
	inv.MechanismName = d.MechanismName
	inv.EmployeeName = d.EmployeeName
	inv.ClientName = d.ClientName
	inv.ManagerName = d.ManagerName
	inv.touch()
}

// Details returns the descriptive fields of the document
func (inv *Invoice) Details() Details {
	return Details{
		Comment:       inv.Comment,
		MachineName:   inv.MachineName,
		MechanismName: inv.MechanismName,
		EmployeeName:  inv.EmployeeName,
		ClientName:    inv.ClientName,
		ManagerName:   inv.ManagerName,
	}
}

func (inv *Invoice) item(id int64) *Item {
	for i := range inv.Items {
		if inv.Items[i].ID == id {
			return &inv.Items[i]
		}
	}
	return nil
}

func (inv *Invoice) touch() {
	inv.UpdatedAt = time.Now()
}
