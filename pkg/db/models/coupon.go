package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/pkg/enums"
)

// Coupon is a promotional code with a validity window, usage accounting,
// and eligibility predicates.
// Invariant: UsedCount never exceeds UsageLimit when a limit is set.
type Coupon struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code         string           `gorm:"column:code;not null;uniqueIndex"`
	Type         enums.CouponType `gorm:"column:type;not null"`
	Value        decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MaxDiscount  *decimal.Decimal `gorm:"column:max_discount;type:numeric(12,2)"`
	MinSpend     *decimal.Decimal `gorm:"column:min_spend;type:numeric(12,2)"`
	MaxSpend     *decimal.Decimal `gorm:"column:max_spend;type:numeric(12,2)"`
	UsageLimit   *int             `gorm:"column:usage_limit"`
	UsedCount    int              `gorm:"column:used_count;not null;default:0"`
	PerUserLimit *int             `gorm:"column:per_user_limit"`
	NewUsersOnly bool             `gorm:"column:new_users_only;not null;default:false"`
	StartsAt     *time.Time       `gorm:"column:starts_at"`
	ExpiresAt    *time.Time       `gorm:"column:expires_at"`
	ProductIDs   pq.StringArray   `gorm:"column:product_ids;type:text"`
	ExcludedIDs  pq.StringArray   `gorm:"column:excluded_ids;type:text"`
	Categories   pq.StringArray   `gorm:"column:categories;type:text"`
	ExcludedCats pq.StringArray   `gorm:"column:excluded_cats;type:text"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExhausted reports whether the global usage limit has been reached.
func (c Coupon) IsExhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// WithinWindow reports whether now falls inside the validity window.
func (c Coupon) WithinWindow(now time.Time) bool {
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}
