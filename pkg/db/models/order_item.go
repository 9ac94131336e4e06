package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/pkg/enums"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

// OrderItem is the frozen copy of a cart line, carrying its own line tax
// and sub-status.
type OrderItem struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	ProductSKU  string                `gorm:"column:product_sku;not null"`
	ProductName string                `gorm:"column:product_name;not null"`
	Quantity    int                   `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTax     decimal.Decimal       `gorm:"column:line_tax;type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal       `gorm:"column:line_total;type:numeric(12,2);not null"`
	Options     types.JSONMap         `gorm:"column:options;serializer:json"`
	Status      enums.OrderItemStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
