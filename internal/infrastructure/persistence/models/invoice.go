package models

import (
	"time"

	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	Type          invoice.Type       `gorm:"type:varchar(30);not null;index"`
	Status        invoice.Status     `gorm:"type:varchar(30);not null;index"`
	Comment       string             `gorm:"type:text"`
	MachineName   string             `gorm:"type:varchar(200)"`
	MechanismName string             `gorm:"type:varchar(200)"`
	EmployeeName  string             `gorm:"type:varchar(200)"`
	ClientName    string             `gorm:"type:varchar(200)"`
	ManagerName   string             `gorm:"type:varchar(200)"`
	ConfirmedAt   *time.Time         `gorm:"index"`
	Items         []InvoiceItemModel `gorm:"foreignKey:InvoiceID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:            m.ID,
		Type:          m.Type,
		Status:        m.Status,
		Comment:       m.Comment,
		MachineName:   m.MachineName,
		MechanismName: m.MechanismName,
		EmployeeName:  m.EmployeeName,
		ClientName:    m.ClientName,
		ManagerName:   m.ManagerName,
		ConfirmedAt:   m.ConfirmedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Version:       m.Version,
		Items:         make([]invoice.Item, len(m.Items)),
	}
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model, items included
func (m *InvoiceModel) FromDomain(inv *invoice.Invoice) {
	m.ID = inv.ID
	m.CreatedAt = inv.CreatedAt
	m.UpdatedAt = inv.UpdatedAt
	m.Version = inv.Version
	m.Type = inv.Type
	m.Status = inv.Status
	m.Comment = inv.Comment
	m.MachineName = inv.MachineName
	m.MechanismName = inv.MechanismName
	m.EmployeeName = inv.EmployeeName
	m.ClientName = inv.ClientName
	m.ManagerName = inv.ManagerName
	m.ConfirmedAt = inv.ConfirmedAt
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i].FromDomain(inv.ID, &inv.Items[i])
	}
}

// InvoiceItemModel is the persistence model for a document line
type InvoiceItemModel struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	InvoiceID        int64           `gorm:"not null;index"`
	StockItemID      int64           `gorm:"not null;index"`
	Name             string          `gorm:"type:varchar(200);not null"`
	Unit             string          `gorm:"type:varchar(20)"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReturnedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Location         string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain Item
func (m *InvoiceItemModel) ToDomain() invoice.Item {
	return invoice.Item{
		ID:               m.ID,
		StockItemID:      m.StockItemID,
		Name:             m.Name,
		Unit:             m.Unit,
		Quantity:         m.Quantity,
		ReturnedQuantity: m.ReturnedQuantity,
		Location:         m.Location,
	}
}

// FromDomain populates the persistence model from a domain Item
func (m *InvoiceItemModel) FromDomain(invoiceID int64, item *invoice.Item) {
	m.ID = item.ID
	m.InvoiceID = invoiceID
	m.StockItemID = item.StockItemID
	m.Name = item.Name
	m.Unit = item.Unit
	m.Quantity = item.Quantity
	m.ReturnedQuantity = item.ReturnedQuantity
	m.Location = item.Location
}
