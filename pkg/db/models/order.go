package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/pkg/enums"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

// Order is the immutable snapshot produced from a converted cart. Monetary
// fields never change after creation; only the status machines advance.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	CartID          uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	UserID          *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	Currency        enums.Currency      `gorm:"column:currency;not null;default:'SAR'"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;serializer:json"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount       decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PaidAmount      decimal.Decimal     `gorm:"column:paid_amount;type:numeric(12,2);not null;default:0"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	ShippedAt       *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	RefundedAt      *time.Time          `gorm:"column:refunded_at"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments        []Payment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsPaid reports whether the order's payment machine has reached paid.
func (o Order) IsPaid() bool {
	return o.PaymentStatus.IsPaid()
}

// IsRefunded reports whether the payment machine has reached refunded.
func (o Order) IsRefunded() bool {
	return o.PaymentStatus == enums.PaymentStatusRefunded
}
