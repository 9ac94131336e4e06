package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/metrics"
)

// orderCounter answers whether a user has completed orders before. The
// orders repository satisfies it; coupons only needs this one question.
type orderCounter interface {
	CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// BasketItem is the slice of a cart line the evaluator cares about.
type BasketItem struct {
	ProductID uuid.UUID
	Category  string
	Qty       int
	LineTotal decimal.Decimal
}

// Basket is the evaluation context for a coupon: who is buying what.
type Basket struct {
	UserID         *uuid.UUID
	Subtotal       decimal.Decimal
	Items          []BasketItem
	AppliedCoupons []uuid.UUID
}

// Service validates coupons against a basket, prices their discounts, and
// records committed redemptions.
type Service interface {
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)

	// Validate runs the eligibility checks in a fixed order and returns
	// the first failure as a typed error.
	Validate(ctx context.Context, coupon *models.Coupon, basket Basket) error

	// CalculateDiscount prices a single coupon against a subtotal. It is
	// pure: same inputs, same amount.
	CalculateDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal

	// TotalDiscount sums the discounts of every coupon and caps the sum
	// at the subtotal so totals never go negative.
	TotalDiscount(coupons []*models.Coupon, subtotal decimal.Decimal) decimal.Decimal

	// Redeem commits one use inside the caller's transaction: bumps
	// used_count under the usage-limit guard and writes the redemption row.
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error
}

type service struct {
	repo   Repository
	orders orderCounter
}

// NewService builds a coupon service backed by the provided stack.
func NewService(repo Repository, orders orderCounter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order counter required")
	}
	return &service{repo: repo, orders: orders}, nil
}

func (s *service) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon payload is required")
	}
	if coupon.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if !coupon.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon type")
	}
	if coupon.Value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value cannot be negative")
	}
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon")
	}
	return coupon, nil
}

// Validate checks, in order: active flag, validity window, global
// exhaustion, already-applied, per-user limit, new-user restriction, spend
// thresholds, product and category eligibility. The first failing check
// wins.
func (s *service) Validate(ctx context.Context, coupon *models.Coupon, basket Basket) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	if err := s.validate(ctx, coupon, basket); err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			metrics.CouponRejections.WithLabelValues(string(typed.Code())).Inc()
		}
		return err
	}
	return nil
}

func (s *service) validate(ctx context.Context, coupon *models.Coupon, basket Basket) error {
	if !coupon.IsActive {
		return pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon is not active")
	}
	if !coupon.WithinWindow(time.Now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon is outside its validity window")
	}
	if coupon.IsExhausted() {
		return pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon usage limit reached")
	}
	for _, applied := range basket.AppliedCoupons {
		if applied == coupon.ID {
			return pkgerrors.New(pkgerrors.CodeCouponAlreadyApplied, "coupon already applied to this cart")
		}
	}
	if coupon.PerUserLimit != nil && basket.UserID != nil {
		used, err := s.repo.CountRedemptionsByUser(ctx, coupon.ID, *basket.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemptions")
		}
		if used >= int64(*coupon.PerUserLimit) {
			return pkgerrors.New(pkgerrors.CodeCouponExhausted, "per-user limit reached")
		}
	}
	if coupon.NewUsersOnly {
		if basket.UserID == nil {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "coupon is for registered new customers")
		}
		orders, err := s.orders.CountOrdersByUser(ctx, *basket.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user orders")
		}
		if orders > 0 {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "coupon is for first orders only")
		}
	}
	if coupon.MinSpend != nil && basket.Subtotal.LessThan(*coupon.MinSpend) {
		return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "cart subtotal below coupon minimum").
			WithDetails(map[string]any{"min_spend": coupon.MinSpend.StringFixed(2)})
	}
	if coupon.MaxSpend != nil && basket.Subtotal.GreaterThan(*coupon.MaxSpend) {
		return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "cart subtotal above coupon maximum").
			WithDetails(map[string]any{"max_spend": coupon.MaxSpend.StringFixed(2)})
	}
	if err := checkItemEligibility(coupon, basket.Items); err != nil {
		return err
	}
	return nil
}

// checkItemEligibility applies the product and category predicates:
// excluded entries disqualify outright, include lists require at least one
// matching line.
func checkItemEligibility(coupon *models.Coupon, items []BasketItem) error {
	excludedIDs := toSet(coupon.ExcludedIDs)
	excludedCats := toSet(coupon.ExcludedCats)
	for _, item := range items {
		if _, ok := excludedIDs[item.ProductID.String()]; ok {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "cart contains an excluded product")
		}
		if _, ok := excludedCats[item.Category]; ok {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "cart contains an excluded category")
		}
	}
	if len(coupon.ProductIDs) > 0 {
		allowed := toSet(coupon.ProductIDs)
		if !anyItem(items, func(it BasketItem) bool {
			_, ok := allowed[it.ProductID.String()]
			return ok
		}) {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "no eligible product in cart")
		}
	}
	if len(coupon.Categories) > 0 {
		allowed := toSet(coupon.Categories)
		if !anyItem(items, func(it BasketItem) bool {
			_, ok := allowed[it.Category]
			return ok
		}) {
			return pkgerrors.New(pkgerrors.CodeCouponNotEligible, "no eligible category in cart")
		}
	}
	return nil
}

func (s *service) CalculateDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount := subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
		return discount.Round(2)
	case enums.CouponTypeFixed:
		if coupon.Value.GreaterThan(subtotal) {
			return subtotal.Round(2)
		}
		return coupon.Value.Round(2)
	default:
		// free_shipping is priced by the shipping calculation, and
		// buy_one_get_one adjusts lines rather than the subtotal.
		return decimal.Zero
	}
}

func (s *service) TotalDiscount(coupons []*models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, coupon := range coupons {
		total = total.Add(s.CalculateDiscount(coupon, subtotal))
	}
	if total.GreaterThan(subtotal) {
		return subtotal.Round(2)
	}
	return total.Round(2)
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error {
	if couponID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon and order ids are required")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon usage limit reached")
	}
	return repo.CreateRedemption(ctx, &models.CouponRedemption{
		ID:       uuid.New(),
		CouponID: couponID,
		UserID:   userID,
		OrderID:  orderID,
	})
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func anyItem(items []BasketItem, match func(BasketItem) bool) bool {
	for _, item := range items {
		if match(item) {
			return true
		}
	}
	return false
}
