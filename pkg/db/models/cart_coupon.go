package models

import (
	"time"

	"github.com/google/uuid"
)

// CartCoupon attaches a coupon to a cart. The discount amount applied by
// the coupon is recomputed from the coupon row on every totals pass, so no
// monetary value is stored here.
type CartCoupon struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index;uniqueIndex:idx_cart_coupon"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_cart_coupon"`
	Coupon    *Coupon   `gorm:"foreignKey:CouponID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
