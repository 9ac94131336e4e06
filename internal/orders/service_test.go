package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tajerhq/tajer-backend/internal/cart"
	"github.com/tajerhq/tajer-backend/pkg/cache"
	"github.com/tajerhq/tajer-backend/pkg/config"
	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/logger"
)

type nopTx struct{}

func (nopTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type memOrderRepo struct {
	orders    map[uuid.UUID]*models.Order
	payments  []models.Payment
	shipments map[uuid.UUID]*models.Shipment
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:    make(map[uuid.UUID]*models.Order),
		shipments: make(map[uuid.UUID]*models.Shipment),
	}
}

func (m *memOrderRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	stored, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *stored
	if shipment, ok := m.shipments[id]; ok {
		copied := *shipment
		out.Shipment = &copied
	}
	return &out, nil
}

func (m *memOrderRepo) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	for _, order := range m.orders {
		if order.OrderNumber == number {
			out := *order
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range m.orders {
		if order.UserID != nil && *order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (m *memOrderRepo) Save(ctx context.Context, order *models.Order) error {
	stored, ok := m.orders[order.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	*stored = *order
	return nil
}

func (m *memOrderRepo) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, order := range m.orders {
		if order.UserID != nil && *order.UserID == userID && order.Status != enums.OrderStatusCancelled {
			count++
		}
	}
	return count, nil
}

func (m *memOrderRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	m.payments = append(m.payments, *payment)
	return nil
}

func (m *memOrderRepo) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	stored := *shipment
	m.shipments[shipment.OrderID] = &stored
	return nil
}

func (m *memOrderRepo) SaveShipment(ctx context.Context, shipment *models.Shipment) error {
	stored := *shipment
	m.shipments[shipment.OrderID] = &stored
	return nil
}

type stubCarts struct{}

func (stubCarts) GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (stubCarts) ValidateStock(ctx context.Context, c *models.Cart) ([]cart.StockIssue, error) {
	return nil, nil
}

func (stubCarts) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	return nil
}

type stockCall struct {
	productID uuid.UUID
	qty       int
}

type stubStock struct {
	restocked []stockCall
}

func (s *stubStock) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *stubStock) Deduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error {
	return nil
}

func (s *stubStock) Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error {
	s.restocked = append(s.restocked, stockCall{productID: productID, qty: qty})
	return nil
}

type stubRedeemer struct{}

func (stubRedeemer) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error {
	return nil
}

type transitionFixture struct {
	svc   Service
	repo  *memOrderRepo
	stock *stubStock
}

func newTransitionFixture(t *testing.T) *transitionFixture {
	t.Helper()

	repo := newMemOrderRepo()
	stock := &stubStock{}
	pricing, err := config.NewPricing("0.15", "15.00", "2.00", "SAR")
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	log := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})

	svc, err := NewService(repo, stubCarts{}, stock, stubRedeemer{}, nopTx{}, pricing, cache.NewNoopInvalidator(), log)
	if err != nil {
		t.Fatalf("order service: %v", err)
	}
	return &transitionFixture{svc: svc, repo: repo, stock: stock}
}

func (f *transitionFixture) seedOrder(t *testing.T, status enums.OrderStatus, payment enums.PaymentStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   newOrderNumber(),
		CartID:        uuid.New(),
		Status:        status,
		PaymentStatus: payment,
		Subtotal:      decimal.NewFromInt(100),
		TaxAmount:     decimal.NewFromInt(15),
		ShippingCost:  decimal.NewFromInt(15),
		TotalAmount:   decimal.NewFromInt(130),
		PaidAmount:    decimal.Zero,
		Items: []models.OrderItem{{
			ID:        uuid.New(),
			ProductID: uuid.New(),
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(50),
			LineTotal: decimal.NewFromInt(100),
			LineTax:   decimal.NewFromInt(15),
			Status:    enums.OrderItemStatusPending,
		}},
	}
	if payment.IsPaid() {
		order.PaidAmount = order.TotalAmount
	}
	if err := f.repo.Create(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestConfirmFromPending(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentStatusPending)

	confirmed, err := f.svc.Confirm(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.OrderStatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Fatalf("unexpected order: %+v", confirmed)
	}
}

func TestConfirmRejectsShippedOrder(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusShipped, enums.PaymentStatusPaid)

	_, err := f.svc.Confirm(context.Background(), order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestShipRequiresPayment(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	unpaid := f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentStatusPending)

	_, err := f.svc.Ship(context.Background(), unpaid.ID, nil, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for unpaid order, got %v", err)
	}

	paid := f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentStatusPaid)
	carrier := "aramex"
	tracking := "TRK123"
	shipped, err := f.svc.Ship(context.Background(), paid.ID, &carrier, &tracking)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if shipped.Status != enums.OrderStatusShipped || shipped.ShippedAt == nil {
		t.Fatalf("unexpected order: %+v", shipped)
	}
	if shipped.Shipment == nil || shipped.Shipment.Status != enums.ShipmentStatusInTransit {
		t.Fatalf("unexpected shipment: %+v", shipped.Shipment)
	}
}

func TestMarkDeliveredCompletesShipment(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentStatusPaid)
	if _, err := f.svc.Ship(context.Background(), order.ID, nil, nil); err != nil {
		t.Fatalf("ship: %v", err)
	}

	delivered, err := f.svc.MarkDelivered(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected order: %+v", delivered)
	}
	if delivered.Shipment == nil || delivered.Shipment.Status != enums.ShipmentStatusDelivered {
		t.Fatalf("unexpected shipment: %+v", delivered.Shipment)
	}
}

func TestCancelRestocksAndGuards(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusConfirmed, enums.PaymentStatusPending)

	cancelled, err := f.svc.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected order: %+v", cancelled)
	}
	if len(f.stock.restocked) != 1 || f.stock.restocked[0].qty != 2 {
		t.Fatalf("expected restock of 2, got %+v", f.stock.restocked)
	}

	shipped := f.seedOrder(t, enums.OrderStatusShipped, enums.PaymentStatusPaid)
	_, err = f.svc.Cancel(context.Background(), shipped.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for shipped order, got %v", err)
	}
}

func TestRefundRequiresPaidUnrefunded(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	unpaid := f.seedOrder(t, enums.OrderStatusDelivered, enums.PaymentStatusPending)
	_, err := f.svc.Refund(context.Background(), unpaid.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for unpaid order, got %v", err)
	}

	paid := f.seedOrder(t, enums.OrderStatusDelivered, enums.PaymentStatusPaid)
	refunded, err := f.svc.Refund(context.Background(), paid.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !refunded.IsRefunded() || refunded.RefundedAt == nil {
		t.Fatalf("unexpected order: %+v", refunded)
	}
	if refunded.Status != enums.OrderStatusRefunded {
		t.Fatalf("status = %s, want refunded", refunded.Status)
	}

	_, err = f.svc.Refund(context.Background(), paid.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected double refund to fail, got %v", err)
	}
}

func TestRecordPaymentDrivesPaymentMachine(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentStatusPending)
	ctx := context.Background()

	partial, err := f.svc.RecordPayment(ctx, order.ID, decimal.NewFromInt(50), "card", nil)
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if partial.PaymentStatus != enums.PaymentStatusPartial {
		t.Fatalf("payment status = %s, want partial", partial.PaymentStatus)
	}

	paid, err := f.svc.RecordPayment(ctx, order.ID, decimal.NewFromInt(80), "card", nil)
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !paid.IsPaid() {
		t.Fatalf("payment status = %s, want paid", paid.PaymentStatus)
	}
	if paid.PaidAmount.StringFixed(2) != "130.00" {
		t.Fatalf("paid amount = %s, want 130.00", paid.PaidAmount.StringFixed(2))
	}
	if len(f.repo.payments) != 2 {
		t.Fatalf("expected 2 payment rows, got %d", len(f.repo.payments))
	}
}

func TestFailPaymentBlocksFurtherCharges(t *testing.T) {
	t.Parallel()

	f := newTransitionFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, enums.PaymentStatusPending)
	ctx := context.Background()

	failed, err := f.svc.FailPayment(ctx, order.ID, "card", nil)
	if err != nil {
		t.Fatalf("fail payment: %v", err)
	}
	if failed.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s, want failed", failed.PaymentStatus)
	}

	_, err = f.svc.RecordPayment(ctx, order.ID, decimal.NewFromInt(130), "card", nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected payment after failure to be rejected, got %v", err)
	}
}
