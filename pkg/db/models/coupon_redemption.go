package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponRedemption records one committed use of a coupon, keyed by user so
// per-user limits can be enforced.
type CouponRedemption struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CouponID  uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null;index"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
