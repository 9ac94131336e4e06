package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tajerhq/tajer-backend/internal/catalog"
	"github.com/tajerhq/tajer-backend/internal/coupons"
	"github.com/tajerhq/tajer-backend/pkg/cache"
	"github.com/tajerhq/tajer-backend/pkg/config"
	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/logger"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockIssue flags one cart line that cannot currently be fulfilled. Code
// is a language-neutral token for the caller to localize.
type StockIssue struct {
	ProductID uuid.UUID `json:"product_id"`
	Code      string    `json:"code"`
}

const (
	IssueProductNotFound   = "product_not_found"
	IssueProductInactive   = "product_inactive"
	IssueInsufficientStock = "insufficient_stock"
)

// Owner identifies who a cart belongs to: a registered user, a guest
// session, or both during login migration.
type Owner struct {
	UserID    *uuid.UUID
	SessionID *string
}

// Service is the cart aggregator: line mutations with stock holds, coupon
// attachment, and totals recomputation.
type Service interface {
	GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	GetOrCreateActive(ctx context.Context, owner Owner) (*models.Cart, error)

	AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int, options types.JSONMap) (*models.Cart, error)
	UpdateItemQty(ctx context.Context, cartID, productID uuid.UUID, qty int) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error)

	ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error)

	// ValidateStock re-checks every line against the live catalog and
	// returns the lines that can no longer be fulfilled.
	ValidateStock(ctx context.Context, cart *models.Cart) ([]StockIssue, error)

	// MarkConverted flips the cart to converted inside the caller's
	// transaction. Fails when the cart is no longer active.
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error

	// Merge folds the source cart into the target: quantities sum per
	// product, coupons re-attach when absent, the source is deleted.
	Merge(ctx context.Context, targetID, sourceID uuid.UUID) (*models.Cart, error)

	// ExpireStale closes active carts past their deadline and releases
	// their stock holds. Returns the number of carts expired.
	ExpireStale(ctx context.Context) (int, error)
}

type service struct {
	repo    Repository
	catalog catalog.Service
	coupons coupons.Service
	tx      txRunner
	pricing config.PricingConfig
	ttl     time.Duration
	cache   cache.Invalidator
	log     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(
	repo Repository,
	catalogSvc catalog.Service,
	couponSvc coupons.Service,
	tx txRunner,
	pricing config.PricingConfig,
	cartTTL time.Duration,
	invalidator cache.Invalidator,
	log *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if invalidator == nil {
		invalidator = cache.NewNoopInvalidator()
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cartTTL <= 0 {
		cartTTL = 72 * time.Hour
	}
	return &service{
		repo:    repo,
		catalog: catalogSvc,
		coupons: couponSvc,
		tx:      tx,
		pricing: pricing,
		ttl:     cartTTL,
		cache:   invalidator,
		log:     log,
	}, nil
}

func (s *service) GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	cart, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart")
	}
	return cart, nil
}

func (s *service) GetOrCreateActive(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.UserID == nil && owner.SessionID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a user or session is required")
	}

	var cart *models.Cart
	var err error
	if owner.UserID != nil {
		cart, err = s.repo.FindActiveByUser(ctx, *owner.UserID)
	} else {
		cart, err = s.repo.FindActiveBySession(ctx, *owner.SessionID)
	}
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find active cart")
	}

	fresh := &models.Cart{
		ID:        uuid.New(),
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    enums.CartStatusActive,
		Currency:  enums.Currency(s.pricing.Currency),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return fresh, nil
}

func (s *service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int, options types.JSONMap) (*models.Cart, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.mutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.catalog.Reserve(ctx, tx, catalog.ReservationRequest{
			ProductID: productID,
			Qty:       qty,
			CartID:    &cart.ID,
		}); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		if existing := findLine(cart, productID); existing != nil {
			existing.Quantity += qty
			existing.Options = existing.Options.Merge(options)
			return repo.UpdateItem(ctx, existing)
		}
		line := &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: productID,
			Category:  product.Category,
			Quantity:  qty,
			UnitPrice: product.EffectivePrice(),
			WeightKg:  product.WeightKg,
			Options:   options,
		}
		if err := repo.CreateItem(ctx, line); err != nil {
			return err
		}
		cart.Items = append(cart.Items, *line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.recomputeAndSave(ctx, cart.ID)
}

func (s *service) UpdateItemQty(ctx context.Context, cartID, productID uuid.UUID, qty int) (*models.Cart, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	cart, err := s.mutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	line := findLine(cart, productID)
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
	}
	delta := qty - line.Quantity

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		switch {
		case delta > 0:
			if err := s.catalog.Reserve(ctx, tx, catalog.ReservationRequest{
				ProductID: productID,
				Qty:       delta,
				CartID:    &cart.ID,
			}); err != nil {
				return err
			}
		case delta < 0:
			if err := s.catalog.Release(ctx, tx, productID, -delta, &cart.ID); err != nil {
				return err
			}
		}
		if qty == 0 {
			return repo.DeleteItem(ctx, line.ID)
		}
		line.Quantity = qty
		return repo.UpdateItem(ctx, line)
	})
	if err != nil {
		return nil, err
	}
	return s.recomputeAndSave(ctx, cart.ID)
}

func (s *service) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error) {
	return s.UpdateItemQty(ctx, cartID, productID, 0)
}

func (s *service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.mutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.coupons.Validate(ctx, coupon, s.basketFor(cart)); err != nil {
		return nil, err
	}
	link := &models.CartCoupon{ID: uuid.New(), CartID: cart.ID, CouponID: coupon.ID}
	if err := s.repo.AttachCoupon(ctx, link); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
	}
	return s.recomputeAndSave(ctx, cart.ID)
}

func (s *service) RemoveCoupon(ctx context.Context, cartID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.mutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DetachCoupon(ctx, cart.ID, coupon.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
	}
	return s.recomputeAndSave(ctx, cart.ID)
}

func (s *service) ValidateStock(ctx context.Context, cart *models.Cart) ([]StockIssue, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	var issues []StockIssue
	var depErr error
	for _, item := range cart.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				issues = append(issues, StockIssue{ProductID: item.ProductID, Code: IssueProductNotFound})
				continue
			}
			depErr = multierr.Append(depErr, err)
			continue
		}
		if !product.IsActive {
			issues = append(issues, StockIssue{ProductID: item.ProductID, Code: IssueProductInactive})
			continue
		}
		if product.Inventory == nil || product.Inventory.StockQty < item.Quantity {
			issues = append(issues, StockIssue{ProductID: item.ProductID, Code: IssueInsufficientStock})
		}
	}
	if depErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, depErr, "validate stock")
	}
	return issues, nil
}

func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	ok, err := s.repo.WithTx(tx).MarkConverted(ctx, cartID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart converted")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
	}
	s.cache.Invalidate(ctx, cache.CartKey(cartID.String()))
	return nil
}

func (s *service) Merge(ctx context.Context, targetID, sourceID uuid.UUID) (*models.Cart, error) {
	if targetID == sourceID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot merge a cart into itself")
	}
	target, err := s.mutableCart(ctx, targetID)
	if err != nil {
		return nil, err
	}
	source, err := s.mutableCart(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	// Stock holds carry over untouched: every source line keeps its
	// reservation whether it moves or folds into an existing target line.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range source.Items {
			item := source.Items[i]
			if existing := findLine(target, item.ProductID); existing != nil {
				existing.Quantity += item.Quantity
				existing.Options = existing.Options.Merge(item.Options)
				if err := repo.UpdateItem(ctx, existing); err != nil {
					return err
				}
				continue
			}
			if err := repo.ReassignItem(ctx, item.ID, target.ID); err != nil {
				return err
			}
		}
		for _, link := range source.Coupons {
			if hasCoupon(target, link.CouponID) {
				continue
			}
			fresh := &models.CartCoupon{ID: uuid.New(), CartID: target.ID, CouponID: link.CouponID}
			if err := repo.AttachCoupon(ctx, fresh); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, source.ID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge carts")
	}
	s.cache.Invalidate(ctx, cache.CartKey(sourceID.String()))
	return s.recomputeAndSave(ctx, target.ID)
}

func (s *service) ExpireStale(ctx context.Context) (int, error) {
	carts, err := s.repo.ListExpired(ctx, time.Now().UTC(), 100)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired carts")
	}

	expired := 0
	for i := range carts {
		stale := carts[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			for _, item := range stale.Items {
				if err := s.catalog.Release(ctx, tx, item.ProductID, item.Quantity, &stale.ID); err != nil {
					return err
				}
			}
			stale.Status = enums.CartStatusExpired
			return s.repo.WithTx(tx).Save(ctx, &stale)
		})
		if err != nil {
			s.log.Error(s.log.WithCartID(ctx, stale.ID.String()), "expiring cart failed", err)
			continue
		}
		s.cache.Invalidate(ctx, cache.CartKey(stale.ID.String()))
		expired++
	}
	return expired, nil
}

// mutableCart loads the cart and rejects mutation of terminal carts.
func (s *service) mutableCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active").
			WithDetails(map[string]any{"status": cart.Status.String()})
	}
	return cart, nil
}

// recomputeAndSave reloads the cart, recomputes its totals, and persists
// them. The reload picks up whatever the preceding mutation changed.
func (s *service) recomputeAndSave(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.computeTotals(ctx, cart)
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart totals")
	}
	s.cache.Invalidate(ctx, cache.CartKey(cart.ID.String()))
	return cart, nil
}

// computeTotals recomputes every monetary field on the cart in place.
// Running it twice with no intervening mutation yields identical values.
func (s *service) computeTotals(ctx context.Context, cart *models.Cart) {
	subtotal := decimal.Zero
	weight := decimal.Zero
	for _, item := range cart.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		subtotal = subtotal.Add(item.UnitPrice.Mul(qty))
		weight = weight.Add(item.WeightKg.Mul(qty))
	}
	subtotal = subtotal.Round(2)

	valid := s.validAttachedCoupons(ctx, cart)
	shipping := decimal.Zero
	if len(cart.Items) > 0 {
		shipping = s.pricing.BaseShipping().Add(weight.Mul(s.pricing.PerKgShipping())).Round(2)
	}
	if hasFreeShipping(valid) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(s.pricing.VAT()).Round(2)
	discount := s.coupons.TotalDiscount(valid, subtotal)

	cart.Subtotal = subtotal
	cart.TaxAmount = tax
	cart.ShippingCost = shipping
	cart.DiscountAmount = discount
	cart.TotalAmount = subtotal.Add(tax).Add(shipping).Sub(discount).Round(2)
}

// validAttachedCoupons filters the cart's coupons down to the ones that
// still pass validation. A coupon that expired after attachment simply
// stops discounting; it is not detached here.
func (s *service) validAttachedCoupons(ctx context.Context, cart *models.Cart) []*models.Coupon {
	var valid []*models.Coupon
	basket := s.basketFor(cart)
	basket.AppliedCoupons = nil
	for _, link := range cart.Coupons {
		if link.Coupon == nil {
			continue
		}
		if err := s.coupons.Validate(ctx, link.Coupon, basket); err != nil {
			continue
		}
		valid = append(valid, link.Coupon)
	}
	return valid
}

func (s *service) basketFor(cart *models.Cart) coupons.Basket {
	items := make([]coupons.BasketItem, 0, len(cart.Items))
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		items = append(items, coupons.BasketItem{
			ProductID: item.ProductID,
			Category:  item.Category,
			Qty:       item.Quantity,
			LineTotal: item.LineTotal(),
		})
		subtotal = subtotal.Add(item.LineTotal())
	}
	applied := make([]uuid.UUID, 0, len(cart.Coupons))
	for _, link := range cart.Coupons {
		applied = append(applied, link.CouponID)
	}
	return coupons.Basket{
		UserID:         cart.UserID,
		Subtotal:       subtotal.Round(2),
		Items:          items,
		AppliedCoupons: applied,
	}
}

func findLine(cart *models.Cart, productID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			return &cart.Items[i]
		}
	}
	return nil
}

func hasCoupon(cart *models.Cart, couponID uuid.UUID) bool {
	for _, link := range cart.Coupons {
		if link.CouponID == couponID {
			return true
		}
	}
	return false
}

func hasFreeShipping(coupons []*models.Coupon) bool {
	for _, coupon := range coupons {
		if coupon.Type == enums.CouponTypeFreeShipping {
			return true
		}
	}
	return false
}
