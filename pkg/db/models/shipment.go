package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tajerhq/tajer-backend/pkg/enums"
)

// Shipment tracks the physical fulfillment of an order.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status         enums.ShipmentStatus `gorm:"column:status;not null;default:'pending'"`
	Carrier        *string              `gorm:"column:carrier"`
	TrackingNumber *string              `gorm:"column:tracking_number"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
