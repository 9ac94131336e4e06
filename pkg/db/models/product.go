package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog listing. Pricing is snapshotted onto cart
// lines at add time, so later edits never change an existing cart.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SKU       string           `gorm:"column:sku;not null;uniqueIndex"`
	Name      string           `gorm:"column:name;not null"`
	Category  string           `gorm:"column:category;not null;default:''"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	SalePrice *decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2)"`
	WeightKg  decimal.Decimal  `gorm:"column:weight_kg;type:numeric(8,3);not null;default:0"`
	IsActive  bool             `gorm:"column:is_active;not null;default:true"`
	Inventory *InventoryItem   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice returns the sale price when one is set, otherwise the
// list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}
