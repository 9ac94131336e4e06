package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/pkg/enums"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

// Cart is the mutable pre-order aggregate. One active cart exists per user
// or guest session; conversion or expiry terminates it.
type Cart struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID       `gorm:"column:user_id;type:uuid;index"`
	SessionID       *string          `gorm:"column:session_id;index"`
	Status          enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	Currency        enums.Currency   `gorm:"column:currency;not null;default:'SAR'"`
	ShippingAddress *types.Address   `gorm:"column:shipping_address;serializer:json"`
	Subtotal        decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	TaxAmount       decimal.Decimal  `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingCost    decimal.Decimal  `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	DiscountAmount  decimal.Decimal  `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount     decimal.Decimal  `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	ExpiresAt       time.Time        `gorm:"column:expires_at;not null"`
	ConvertedAt     *time.Time       `gorm:"column:converted_at"`
	Items           []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Coupons         []CartCoupon     `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemCount returns the total quantity across all lines.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}
