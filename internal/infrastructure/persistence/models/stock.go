package models

import (
	"github.com/erp/invoicedesk/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// StockItemModel is the persistence model for a stock item
type StockItemModel struct {
	BaseModel
	Code     string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string          `gorm:"type:varchar(200);not null"`
	Unit     string          `gorm:"type:varchar(20)"`
	Quantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0;index"`
	Location string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (StockItemModel) TableName() string {
	return "stock_items"
}

// ToDomain converts the persistence model to a domain StockItem
func (m *StockItemModel) ToDomain() *invoice.StockItem {
	return &invoice.StockItem{
		ID:       m.ID,
		Code:     m.Code,
		Name:     m.Name,
		Unit:     m.Unit,
		Quantity: m.Quantity,
		Location: m.Location,
	}
}

// FromDomain populates the persistence model from a domain StockItem
func (m *StockItemModel) FromDomain(s *invoice.StockItem) {
	m.ID = s.ID
	m.Code = s.Code
	m.Name = s.Name
	m.Unit = s.Unit
	m.Quantity = s.Quantity
	m.Location = s.Location
}
