package models

import "time"

// BaseModel provides common persistence fields for all models
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel extends BaseModel with a version for optimistic locking
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// All returns every model in dependency order for AutoMigrate
func All() []any {
	return []any{
		&UserModel{},
		&StockItemModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
	}
}
