package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

type nopTx struct{}

func (nopTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// memCartRepo is an in-memory cart store for service tests.
type memCartRepo struct {
	carts   map[uuid.UUID]*models.Cart
	coupons map[uuid.UUID]*models.Coupon
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{
		carts:   make(map[uuid.UUID]*models.Cart),
		coupons: make(map[uuid.UUID]*models.Coupon),
	}
}

func (m *memCartRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memCartRepo) Create(ctx context.Context, cart *models.Cart) error {
	stored := *cart
	m.carts[cart.ID] = &stored
	return nil
}

func (m *memCartRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	stored, ok := m.carts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return m.clone(stored), nil
}

func (m *memCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	for _, cart := range m.carts {
		if cart.UserID != nil && *cart.UserID == userID && cart.Status == enums.CartStatusActive {
			return m.clone(cart), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCartRepo) FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	for _, cart := range m.carts {
		if cart.SessionID != nil && *cart.SessionID == sessionID && cart.Status == enums.CartStatusActive {
			return m.clone(cart), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memCartRepo) Save(ctx context.Context, cart *models.Cart) error {
	stored, ok := m.carts[cart.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = cart.Status
	stored.Subtotal = cart.Subtotal
	stored.TaxAmount = cart.TaxAmount
	stored.ShippingCost = cart.ShippingCost
	stored.DiscountAmount = cart.DiscountAmount
	stored.TotalAmount = cart.TotalAmount
	stored.ExpiresAt = cart.ExpiresAt
	stored.ConvertedAt = cart.ConvertedAt
	return nil
}

func (m *memCartRepo) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) (bool, error) {
	stored, ok := m.carts[cartID]
	if !ok || stored.Status != enums.CartStatusActive {
		return false, nil
	}
	stored.Status = enums.CartStatusConverted
	stored.ConvertedAt = &at
	return true, nil
}

func (m *memCartRepo) Delete(ctx context.Context, cartID uuid.UUID) error {
	delete(m.carts, cartID)
	return nil
}

func (m *memCartRepo) CreateItem(ctx context.Context, item *models.CartItem) error {
	stored, ok := m.carts[item.CartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Items = append(stored.Items, *item)
	return nil
}

func (m *memCartRepo) UpdateItem(ctx context.Context, item *models.CartItem) error {
	for _, cart := range m.carts {
		for i := range cart.Items {
			if cart.Items[i].ID == item.ID {
				cart.Items[i] = *item
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	for _, cart := range m.carts {
		for i := range cart.Items {
			if cart.Items[i].ID == itemID {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memCartRepo) ReassignItem(ctx context.Context, itemID, cartID uuid.UUID) error {
	for _, cart := range m.carts {
		for i := range cart.Items {
			if cart.Items[i].ID == itemID {
				item := cart.Items[i]
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				item.CartID = cartID
				m.carts[cartID].Items = append(m.carts[cartID].Items, item)
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *memCartRepo) AttachCoupon(ctx context.Context, link *models.CartCoupon) error {
	stored, ok := m.carts[link.CartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Coupons = append(stored.Coupons, *link)
	return nil
}

func (m *memCartRepo) DetachCoupon(ctx context.Context, cartID, couponID uuid.UUID) error {
	stored, ok := m.carts[cartID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range stored.Coupons {
		if stored.Coupons[i].CouponID == couponID {
			stored.Coupons = append(stored.Coupons[:i], stored.Coupons[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCartRepo) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var out []models.Cart
	for _, cart := range m.carts {
		if cart.Status == enums.CartStatusActive && cart.ExpiresAt.Before(cutoff) {
			out = append(out, *m.clone(cart))
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memCartRepo) clone(cart *models.Cart) *models.Cart {
	out := *cart
	out.Items = append([]models.CartItem(nil), cart.Items...)
	out.Coupons = append([]models.CartCoupon(nil), cart.Coupons...)
	for i := range out.Coupons {
		out.Coupons[i].Coupon = m.coupons[out.Coupons[i].CouponID]
	}
	return &out
}

type reserveCall struct {
	productID uuid.UUID
	qty       int
}

// stubCatalog satisfies catalog.Service with canned products and records
// reservation traffic.
type stubCatalog struct {
	catalog.Service

	products map[uuid.UUID]*models.Product
	reserved []reserveCall
	released []reserveCall
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func (s *stubCatalog) Reserve(ctx context.Context, tx *gorm.DB, req catalog.ReservationRequest) error {
	product, ok := s.products[req.ProductID]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.Inventory != nil && product.Inventory.AvailableQty < req.Qty {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	}
	s.reserved = append(s.reserved, reserveCall{productID: req.ProductID, qty: req.Qty})
	return nil
}

func (s *stubCatalog) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, cartID *uuid.UUID) error {
	s.released = append(s.released, reserveCall{productID: productID, qty: qty})
	return nil
}

// couponRepoStub backs a real coupon service so discount math is exercised
// for real.
type couponRepoStub struct {
	coupons.Repository

	byCode map[string]*models.Coupon
}

func (c *couponRepoStub) WithTx(tx *gorm.DB) coupons.Repository { return c }

func (c *couponRepoStub) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if coupon, ok := c.byCode[code]; ok {
		return coupon, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (c *couponRepoStub) CountRedemptionsByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type noOrders struct{}

func (noOrders) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc     Service
	repo    *memCartRepo
	catalog *stubCatalog
	coupons *couponRepoStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemCartRepo()
	cat := &stubCatalog{products: make(map[uuid.UUID]*models.Product)}
	couponRepo := &couponRepoStub{byCode: make(map[string]*models.Coupon)}

	couponSvc, err := coupons.NewService(couponRepo, noOrders{})
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	pricing, err := config.NewPricing("0.15", "15.00", "2.00", "SAR")
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	log := logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard})

	svc, err := NewService(repo, cat, couponSvc, nopTx{}, pricing, time.Hour, cache.NewNoopInvalidator(), log)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	return &fixture{svc: svc, repo: repo, catalog: cat, coupons: couponRepo}
}

func (f *fixture) addProduct(t *testing.T, price string, weightKg string, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	priceDec, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	weightDec, err := decimal.NewFromString(weightKg)
	if err != nil {
		t.Fatalf("weight: %v", err)
	}
	f.catalog.products[id] = &models.Product{
		ID:       id,
		SKU:      "SKU-" + id.String()[:8],
		Name:     "product",
		Category: "general",
		Price:    priceDec,
		WeightKg: weightDec,
		IsActive: true,
		Inventory: &models.InventoryItem{
			ProductID:    id,
			StockQty:     available,
			AvailableQty: available,
		},
	}
	return id
}

func (f *fixture) newCart(t *testing.T) *models.Cart {
	t.Helper()
	userID := uuid.New()
	cart, err := f.svc.GetOrCreateActive(context.Background(), Owner{UserID: &userID})
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	return cart
}

func (f *fixture) addCoupon(coupon *models.Coupon) {
	f.coupons.byCode[coupon.Code] = coupon
	f.repo.coupons[coupon.ID] = coupon
}

func assertMoney(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if got.StringFixed(2) != want {
		t.Fatalf("%s = %s, want %s", label, got.StringFixed(2), want)
	}
}

func TestAddItemComputesTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "100.00", "0", 10)
	cart := f.newCart(t)

	updated, err := f.svc.AddItem(ctx, cart.ID, productID, 2, nil)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	assertMoney(t, "subtotal", updated.Subtotal, "200.00")
	assertMoney(t, "tax", updated.TaxAmount, "30.00")
	assertMoney(t, "shipping", updated.ShippingCost, "15.00")
	assertMoney(t, "discount", updated.DiscountAmount, "0.00")
	assertMoney(t, "total", updated.TotalAmount, "245.00")

	if len(f.catalog.reserved) != 1 || f.catalog.reserved[0].qty != 2 {
		t.Fatalf("expected one reservation of 2, got %+v", f.catalog.reserved)
	}
}

func TestAddItemChargesShippingByWeight(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	productID := f.addProduct(t, "50.00", "1.5", 10)
	cart := f.newCart(t)

	updated, err := f.svc.AddItem(context.Background(), cart.ID, productID, 2, nil)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	// base 15.00 + 3kg * 2.00
	assertMoney(t, "shipping", updated.ShippingCost, "21.00")
}

func TestAddItemMergesExistingLine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "10.00", "0", 10)
	cart := f.newCart(t)

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 2, types.JSONMap{"size": "M"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	updated, err := f.svc.AddItem(ctx, cart.ID, productID, 3, types.JSONMap{"gift": true})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(updated.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(updated.Items))
	}
	line := updated.Items[0]
	if line.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", line.Quantity)
	}
	if line.Options["size"] != "M" || line.Options["gift"] != true {
		t.Fatalf("options not merged: %+v", line.Options)
	}
	// Only the delta is reserved on the second add.
	if len(f.catalog.reserved) != 2 || f.catalog.reserved[1].qty != 3 {
		t.Fatalf("unexpected reservations: %+v", f.catalog.reserved)
	}
}

func TestAddItemInactiveProduct(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	productID := f.addProduct(t, "10.00", "0", 10)
	f.catalog.products[productID].IsActive = false
	cart := f.newCart(t)

	_, err := f.svc.AddItem(context.Background(), cart.ID, productID, 1, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeProductUnavailable) {
		t.Fatalf("expected product unavailable, got %v", err)
	}
}

func TestAddItemInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	productID := f.addProduct(t, "10.00", "0", 1)
	cart := f.newCart(t)

	_, err := f.svc.AddItem(context.Background(), cart.ID, productID, 2, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestUpdateItemQtyZeroDeletesLine(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "10.00", "0", 10)
	cart := f.newCart(t)

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 4, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	updated, err := f.svc.UpdateItemQty(ctx, cart.ID, productID, 0)
	if err != nil {
		t.Fatalf("update qty: %v", err)
	}

	if len(updated.Items) != 0 {
		t.Fatalf("expected line removed, got %d items", len(updated.Items))
	}
	assertMoney(t, "total", updated.TotalAmount, "0.00")
	if len(f.catalog.released) != 1 || f.catalog.released[0].qty != 4 {
		t.Fatalf("expected full release, got %+v", f.catalog.released)
	}
}

func TestUpdateItemQtyAdjustsHoldByDelta(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "10.00", "0", 10)
	cart := f.newCart(t)

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 4, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.UpdateItemQty(ctx, cart.ID, productID, 6); err != nil {
		t.Fatalf("grow qty: %v", err)
	}
	if _, err := f.svc.UpdateItemQty(ctx, cart.ID, productID, 1); err != nil {
		t.Fatalf("shrink qty: %v", err)
	}

	if len(f.catalog.reserved) != 2 || f.catalog.reserved[1].qty != 2 {
		t.Fatalf("expected delta reservation of 2, got %+v", f.catalog.reserved)
	}
	if len(f.catalog.released) != 1 || f.catalog.released[0].qty != 5 {
		t.Fatalf("expected delta release of 5, got %+v", f.catalog.released)
	}
}

func TestTotalsRecomputationIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "33.33", "0.7", 10)
	cart := f.newCart(t)

	first, err := f.svc.AddItem(ctx, cart.ID, productID, 3, nil)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	// Same quantity: a no-op mutation followed by a fresh recomputation.
	second, err := f.svc.UpdateItemQty(ctx, cart.ID, productID, 3)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}

	if !first.TotalAmount.Equal(second.TotalAmount) ||
		!first.TaxAmount.Equal(second.TaxAmount) ||
		!first.ShippingCost.Equal(second.ShippingCost) {
		t.Fatalf("totals drifted: %+v vs %+v", first, second)
	}
}

func TestApplyCouponDiscountsTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "100.00", "0", 10)
	cart := f.newCart(t)
	max := decimal.NewFromInt(15)
	f.addCoupon(&models.Coupon{
		ID:          uuid.New(),
		Code:        "SAVE10",
		Type:        enums.CouponTypePercentage,
		Value:       decimal.NewFromInt(10),
		MaxDiscount: &max,
		IsActive:    true,
	})

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 2, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	updated, err := f.svc.ApplyCoupon(ctx, cart.ID, "SAVE10")
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}

	// min(10% of 200, 15) = 15
	assertMoney(t, "discount", updated.DiscountAmount, "15.00")
	assertMoney(t, "total", updated.TotalAmount, "230.00")
}

func TestApplyCouponTwiceFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "100.00", "0", 10)
	cart := f.newCart(t)
	f.addCoupon(&models.Coupon{
		ID:       uuid.New(),
		Code:     "ONCE",
		Type:     enums.CouponTypeFixed,
		Value:    decimal.NewFromInt(5),
		IsActive: true,
	})

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 1, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := f.svc.ApplyCoupon(ctx, cart.ID, "ONCE"); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	_, err := f.svc.ApplyCoupon(ctx, cart.ID, "ONCE")
	if !pkgerrors.HasCode(err, pkgerrors.CodeCouponAlreadyApplied) {
		t.Fatalf("expected already applied, got %v", err)
	}
}

func TestFreeShippingCouponWaivesShipping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "100.00", "2", 10)
	cart := f.newCart(t)
	f.addCoupon(&models.Coupon{
		ID:       uuid.New(),
		Code:     "SHIPFREE",
		Type:     enums.CouponTypeFreeShipping,
		Value:    decimal.Zero,
		IsActive: true,
	})

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 1, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	updated, err := f.svc.ApplyCoupon(ctx, cart.ID, "SHIPFREE")
	if err != nil {
		t.Fatalf("apply coupon: %v", err)
	}

	assertMoney(t, "shipping", updated.ShippingCost, "0.00")
	assertMoney(t, "discount", updated.DiscountAmount, "0.00")
	// 100 + 15 tax + 0 shipping
	assertMoney(t, "total", updated.TotalAmount, "115.00")
}

func TestValidateStockFlagsProblems(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	healthy := f.addProduct(t, "10.00", "0", 10)
	deactivated := f.addProduct(t, "10.00", "0", 10)
	starved := f.addProduct(t, "10.00", "0", 10)
	cart := f.newCart(t)

	for _, id := range []uuid.UUID{healthy, deactivated, starved} {
		if _, err := f.svc.AddItem(ctx, cart.ID, id, 2, nil); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	f.catalog.products[deactivated].IsActive = false
	f.catalog.products[starved].Inventory.StockQty = 1
	ghost := uuid.New()
	loaded, err := f.svc.GetCart(ctx, cart.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	loaded.Items = append(loaded.Items, models.CartItem{ProductID: ghost, Quantity: 1})

	issues, err := f.svc.ValidateStock(ctx, loaded)
	if err != nil {
		t.Fatalf("validate stock: %v", err)
	}

	byProduct := make(map[uuid.UUID]string, len(issues))
	for _, issue := range issues {
		byProduct[issue.ProductID] = issue.Code
	}
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %+v", issues)
	}
	if byProduct[deactivated] != IssueProductInactive {
		t.Fatalf("deactivated product: %+v", byProduct)
	}
	if byProduct[starved] != IssueInsufficientStock {
		t.Fatalf("starved product: %+v", byProduct)
	}
	if byProduct[ghost] != IssueProductNotFound {
		t.Fatalf("ghost product: %+v", byProduct)
	}
}

func TestMergeFoldsSourceIntoTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	shared := f.addProduct(t, "10.00", "0", 50)
	exclusive := f.addProduct(t, "20.00", "0", 50)
	target := f.newCart(t)
	source := f.newCart(t)
	f.addCoupon(&models.Coupon{
		ID:       uuid.New(),
		Code:     "MERGED",
		Type:     enums.CouponTypeFixed,
		Value:    decimal.NewFromInt(2),
		IsActive: true,
	})

	if _, err := f.svc.AddItem(ctx, target.ID, shared, 1, nil); err != nil {
		t.Fatalf("target add: %v", err)
	}
	if _, err := f.svc.AddItem(ctx, source.ID, shared, 2, nil); err != nil {
		t.Fatalf("source add shared: %v", err)
	}
	if _, err := f.svc.AddItem(ctx, source.ID, exclusive, 1, nil); err != nil {
		t.Fatalf("source add exclusive: %v", err)
	}
	if _, err := f.svc.ApplyCoupon(ctx, source.ID, "MERGED"); err != nil {
		t.Fatalf("source coupon: %v", err)
	}

	merged, err := f.svc.Merge(ctx, target.ID, source.ID)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if len(merged.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(merged.Items))
	}
	sharedLine := findLine(merged, shared)
	if sharedLine == nil || sharedLine.Quantity != 3 {
		t.Fatalf("shared line not summed: %+v", merged.Items)
	}
	if len(merged.Coupons) != 1 {
		t.Fatalf("coupon not re-attached: %+v", merged.Coupons)
	}
	if _, err := f.svc.GetCart(ctx, source.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("source cart should be gone, got %v", err)
	}
	// 3x10 + 1x20 minus the 2.00 coupon, plus 15% tax and base shipping.
	assertMoney(t, "subtotal", merged.Subtotal, "50.00")
	assertMoney(t, "total", merged.TotalAmount, "70.50")
}

func TestExpireStaleReleasesHolds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "10.00", "0", 10)
	cart := f.newCart(t)

	if _, err := f.svc.AddItem(ctx, cart.ID, productID, 3, nil); err != nil {
		t.Fatalf("add item: %v", err)
	}
	f.repo.carts[cart.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	expired, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("expire stale: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expiry, got %d", expired)
	}
	if len(f.catalog.released) != 1 || f.catalog.released[0].qty != 3 {
		t.Fatalf("expected hold released, got %+v", f.catalog.released)
	}

	stale, err := f.svc.GetCart(ctx, cart.ID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if stale.Status != enums.CartStatusExpired {
		t.Fatalf("status = %s, want expired", stale.Status)
	}

	_, err = f.svc.AddItem(ctx, cart.ID, productID, 1, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expired cart must reject mutation, got %v", err)
	}
}
