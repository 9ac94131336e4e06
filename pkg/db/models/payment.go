package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/pkg/enums"
)

// Payment records one payment attempt against an order. The order's
// aggregate PaymentStatus is derived from the sum of settled payments.
type Payment struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Amount    decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Method    string              `gorm:"column:method;not null;default:'card'"`
	Status    enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Reference *string             `gorm:"column:reference"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
