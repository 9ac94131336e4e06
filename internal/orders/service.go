package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
	"github.com/tajerhq/tajer-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// cartProvider is the slice of the cart service checkout needs.
type cartProvider interface {
	GetCart(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	ValidateStock(ctx context.Context, c *models.Cart) ([]cart.StockIssue, error)
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// stockKeeper is the slice of the catalog service checkout needs: turning
// cart holds into permanent deductions, and undoing them on cancellation.
type stockKeeper interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Deduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error
	Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error
}

// couponRedeemer commits coupon usage for a materialized order.
type couponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID *uuid.UUID, orderID uuid.UUID) error
}

// Service materializes carts into orders and drives the order, payment,
// and shipment state machines.
type Service interface {
	// CreateOrder converts an active cart into an order in one
	// transaction: snapshot the lines, deduct stock per line, redeem
	// coupons, and flip the cart to converted. Any failure rolls the
	// whole conversion back.
	CreateOrder(ctx context.Context, cartID uuid.UUID) (*models.Order, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)

	Confirm(ctx context.Context, id uuid.UUID) (*models.Order, error)
	StartProcessing(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Ship(ctx context.Context, id uuid.UUID, carrier, trackingNumber *string) (*models.Order, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Refund(ctx context.Context, id uuid.UUID) (*models.Order, error)

	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method string, reference *string) (*models.Order, error)
	FailPayment(ctx context.Context, id uuid.UUID, method string, reference *string) (*models.Order, error)
}

type service struct {
	repo    Repository
	carts   cartProvider
	stock   stockKeeper
	coupons couponRedeemer
	tx      txRunner
	pricing config.PricingConfig
	cache   cache.Invalidator
	log     *logger.Logger
}

// NewService builds an order service backed by the provided stack.
func NewService(
	repo Repository,
	carts cartProvider,
	stock stockKeeper,
	coupons couponRedeemer,
	tx txRunner,
	pricing config.PricingConfig,
	invalidator cache.Invalidator,
	log *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart provider required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock keeper required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon redeemer required")
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
	return &service{
		repo:    repo,
		carts:   carts,
		stock:   stock,
		coupons: coupons,
		tx:      tx,
		pricing: pricing,
		cache:   invalidator,
		log:     log,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	sourceCart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if sourceCart.Status.IsTerminal() {
		metrics.OrderCreationFailures.WithLabelValues("cart_state").Inc()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer active")
	}
	if len(sourceCart.Items) == 0 {
		metrics.OrderCreationFailures.WithLabelValues("empty_cart").Inc()
		return nil, pkgerrors.New(pkgerrors.CodeCartInvalid, "cart has no items")
	}
	issues, err := s.carts.ValidateStock(ctx, sourceCart)
	if err != nil {
		metrics.OrderCreationFailures.WithLabelValues("dependency").Inc()
		return nil, err
	}
	if len(issues) > 0 {
		metrics.OrderCreationFailures.WithLabelValues("stock_validation").Inc()
		return nil, pkgerrors.New(pkgerrors.CodeCartInvalid, "cart failed stock validation").
			WithDetails(map[string]any{"issues": issues})
	}

	order := s.buildOrder(ctx, sourceCart)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		for _, item := range order.Items {
			if err := s.stock.Deduct(ctx, tx, item.ProductID, item.Quantity, &order.ID); err != nil {
				return err
			}
		}
		for _, link := range sourceCart.Coupons {
			if err := s.coupons.Redeem(ctx, tx, link.CouponID, sourceCart.UserID, order.ID); err != nil {
				return err
			}
		}
		return s.carts.MarkConverted(ctx, tx, sourceCart.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			metrics.OrderCreationFailures.WithLabelValues(strings.ToLower(string(typed.Code()))).Inc()
		} else {
			metrics.OrderCreationFailures.WithLabelValues("unknown").Inc()
		}
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	s.cache.Invalidate(ctx,
		cache.CartKey(sourceCart.ID.String()),
		cache.OrderKey(order.ID.String()),
	)
	s.log.Info(s.log.WithOrderID(ctx, order.ID.String()), "order created")
	return order, nil
}

// buildOrder snapshots the cart into an order aggregate. Line tax is VAT
// applied per line so each order item carries its own tax share.
func (s *service) buildOrder(ctx context.Context, sourceCart *models.Cart) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     newOrderNumber(),
		CartID:          sourceCart.ID,
		UserID:          sourceCart.UserID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		Currency:        sourceCart.Currency,
		ShippingAddress: sourceCart.ShippingAddress,
		Subtotal:        sourceCart.Subtotal,
		TaxAmount:       sourceCart.TaxAmount,
		ShippingCost:    sourceCart.ShippingCost,
		DiscountAmount:  sourceCart.DiscountAmount,
		TotalAmount:     sourceCart.TotalAmount,
		PaidAmount:      decimal.Zero,
	}
	for _, line := range sourceCart.Items {
		lineTotal := line.LineTotal().Round(2)
		item := models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTax:   lineTotal.Mul(s.pricing.VAT()).Round(2),
			LineTotal: lineTotal,
			Options:   line.Options,
			Status:    enums.OrderItemStatusPending,
		}
		if product, err := s.stock.GetProduct(ctx, line.ProductID); err == nil {
			item.ProductSKU = product.SKU
			item.ProductName = product.Name
		}
		order.Items = append(order.Items, item)
	}
	return order
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order")
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) Confirm(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, enums.OrderStatusConfirmed, func(order *models.Order, now time.Time) {
		order.ConfirmedAt = &now
	})
}

func (s *service) StartProcessing(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, id, enums.OrderStatusProcessing, nil)
}

func (s *service) Ship(ctx context.Context, id uuid.UUID, carrier, trackingNumber *string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order must be paid before shipping")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusShipped) {
		return nil, transitionError(order.Status, enums.OrderStatusShipped)
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order.Status = enums.OrderStatusShipped
		order.ShippedAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if order.Shipment == nil {
			shipment := &models.Shipment{
				ID:             uuid.New(),
				OrderID:        order.ID,
				Status:         enums.ShipmentStatusInTransit,
				Carrier:        carrier,
				TrackingNumber: trackingNumber,
				ShippedAt:      &now,
			}
			if err := repo.CreateShipment(ctx, shipment); err != nil {
				return err
			}
			order.Shipment = shipment
			return nil
		}
		order.Shipment.Status = enums.ShipmentStatusInTransit
		order.Shipment.Carrier = carrier
		order.Shipment.TrackingNumber = trackingNumber
		order.Shipment.ShippedAt = &now
		return repo.SaveShipment(ctx, order.Shipment)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ship order")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	return order, nil
}

func (s *service) MarkDelivered(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusDelivered) {
		return nil, transitionError(order.Status, enums.OrderStatusDelivered)
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order.Status = enums.OrderStatusDelivered
		order.DeliveredAt = &now
		if err := repo.Save(ctx, order); err != nil {
			return err
		}
		if order.Shipment != nil {
			order.Shipment.Status = enums.ShipmentStatusDelivered
			order.Shipment.DeliveredAt = &now
			return repo.SaveShipment(ctx, order.Shipment)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver order")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	return order, nil
}

// Cancel aborts an order that has not started fulfillment and returns its
// deducted stock.
func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.IsCancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range order.Items {
			if err := s.stock.Restock(ctx, tx, item.ProductID, item.Quantity, &order.ID); err != nil {
				return err
			}
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		return s.repo.WithTx(tx).Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	s.log.Info(s.log.WithOrderID(ctx, order.ID.String()), "order cancelled")
	return order, nil
}

func (s *service) Refund(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsPaid() || order.IsRefunded() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid, unrefunded orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
	}

	now := time.Now().UTC()
	order.PaymentStatus = enums.PaymentStatusRefunded
	order.RefundedAt = &now
	if order.Status.CanTransitionTo(enums.OrderStatusRefunded) {
		order.Status = enums.OrderStatusRefunded
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund order")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	s.log.Info(s.log.WithOrderID(ctx, order.ID.String()), "order refunded")
	return order, nil
}

func (s *service) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal, method string, reference *string) (*models.Order, error) {
	if amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	paid := order.PaidAmount.Add(amount)
	next := enums.PaymentStatusPartial
	if paid.GreaterThanOrEqual(order.TotalAmount) {
		next = enums.PaymentStatusPaid
	}
	if order.PaymentStatus != next && !order.PaymentStatus.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot be recorded in the current state").
			WithDetails(map[string]any{
				"payment_status": order.PaymentStatus.String(),
				"attempted":      next.String(),
			})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment := &models.Payment{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Amount:    amount,
			Method:    method,
			Status:    enums.PaymentStatusPaid,
			Reference: reference,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}
		order.Payments = append(order.Payments, *payment)
		order.PaidAmount = paid
		order.PaymentStatus = next
		return repo.Save(ctx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	return order, nil
}

func (s *service) FailPayment(ctx context.Context, id uuid.UUID, method string, reference *string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.PaymentStatus.CanTransitionTo(enums.PaymentStatusFailed) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot fail in the current state").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment := &models.Payment{
			ID:        uuid.New(),
			OrderID:   order.ID,
			Amount:    decimal.Zero,
			Method:    method,
			Status:    enums.PaymentStatusFailed,
			Reference: reference,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}
		order.Payments = append(order.Payments, *payment)
		order.PaymentStatus = enums.PaymentStatusFailed
		return repo.Save(ctx, order)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	return order, nil
}

// transition applies a simple single-status move with an optional
// timestamp mutation.
func (s *service) transition(ctx context.Context, id uuid.UUID, next enums.OrderStatus, apply func(*models.Order, time.Time)) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, transitionError(order.Status, next)
	}
	now := time.Now().UTC()
	order.Status = next
	if apply != nil {
		apply(order, now)
	}
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order status")
	}
	s.cache.Invalidate(ctx, cache.OrderKey(order.ID.String()))
	return order, nil
}

func transitionError(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}

func newOrderNumber() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), token)
}
