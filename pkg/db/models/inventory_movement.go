package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tajerhq/tajer-backend/pkg/enums"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

// InventoryMovement is an append-only ledger entry recording a stock delta.
// IDs are assigned in code so the table works on every dialect the tests use.
type InventoryMovement struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	MovementType enums.MovementType   `gorm:"column:movement_type;not null"`
	Status       enums.MovementStatus `gorm:"column:status;not null;default:'pending'"`
	Qty          int                  `gorm:"column:qty;not null"`
	OrderID      *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	CartID       *uuid.UUID           `gorm:"column:cart_id;type:uuid"`
	Metadata     types.JSONMap        `gorm:"column:metadata;serializer:json"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}
