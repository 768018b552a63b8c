package invoice

import "github.com/shopspring/decimal"

// StockItem is an inventory item referenced by document lines
type StockItem struct {
	ID       int64           `json:"id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
	Location string          `json:"location,omitempty"`
}

// IsZeroBalance returns true when nothing is left on hand
func (s *StockItem) IsZeroBalance() bool {
	return s.Quantity.LessThanOrEqual(decimal.Zero)
}
