package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/metrics"
	"github.com/tajerhq/tajer-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationRequest asks for qty units of a product to be held.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
	CartID    *uuid.UUID
}

// ReservationResult reports the outcome per request.
type ReservationResult struct {
	ProductID uuid.UUID
	Reserved  bool
	Reason    string
}

// Service exposes catalog reads and the guarded stock operations. The
// tx-taking methods participate in a caller-owned transaction so order
// materialization can compose them with its own writes.
type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product, initialStock int) (*models.Product, error)

	Reserve(ctx context.Context, tx *gorm.DB, req ReservationRequest) error
	ReserveBatch(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error)
	Deduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, cartID *uuid.UUID) error
	Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error

	AddStock(ctx context.Context, productID uuid.UUID, qty int, note string) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a catalog service backed by the provided stack.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindProductWithInventory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	product, err := s.repo.FindProductBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, product *models.Product, initialStock int) (*models.Product, error) {
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product payload is required")
	}
	if product.SKU == "" || product.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku and name are required")
	}
	if product.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if initialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		created, err = repo.CreateProduct(ctx, product)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
		}
		item := &models.InventoryItem{
			ProductID:    created.ID,
			StockQty:     initialStock,
			AvailableQty: initialStock,
		}
		if _, err := repo.UpsertInventory(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert inventory")
		}
		if initialStock > 0 {
			return repo.CreateMovement(ctx, newMovement(created.ID, enums.MovementTypeRestock, initialStock, nil, nil, types.JSONMap{"note": "initial stock"}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Reserve places a hold on qty units inside the caller's transaction.
// The conditional update is the only guard; there is no read-then-write
// window for another request to slip through.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, req ReservationRequest) error {
	if req.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.ReserveCounters(ctx, req.ProductID, req.Qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		if _, invErr := repo.GetInventory(ctx, req.ProductID); errors.Is(invErr, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found for product")
		}
		metrics.StockConflicts.Inc()
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"product_id": req.ProductID, "requested": req.Qty})
	}

	return repo.CreateMovement(ctx, newMovement(req.ProductID, enums.MovementTypeReservation, req.Qty, nil, req.CartID, nil))
}

// ReserveBatch attempts every request, returning per-request outcomes.
// Failed requests do not abort the batch; the caller decides whether a
// partial result is acceptable.
func (s *service) ReserveBatch(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		result := ReservationResult{ProductID: req.ProductID, Reserved: true}
		if err := s.Reserve(ctx, tx, req); err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || (typed.Code() != pkgerrors.CodeInsufficientStock && typed.Code() != pkgerrors.CodeNotFound) {
				return nil, err
			}
			result.Reserved = false
			result.Reason = typed.Message()
		}
		results = append(results, result)
	}
	return results, nil
}

// Deduct converts a reservation into a permanent stock decrease.
func (s *service) Deduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deduction qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.DeductCounters(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct stock")
	}
	if !ok {
		if _, invErr := repo.GetInventory(ctx, productID); errors.Is(invErr, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found for product")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved quantity below requested deduction").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}

	return repo.CreateMovement(ctx, newMovement(productID, enums.MovementTypeDeduction, -qty, orderID, nil, nil))
}

// Release reverses a reservation (item removed, cart abandoned/expired).
func (s *service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, cartID *uuid.UUID) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.ReleaseCounters(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved quantity below requested release").
			WithDetails(map[string]any{"product_id": productID, "requested": qty})
	}

	return repo.CreateMovement(ctx, newMovement(productID, enums.MovementTypeRelease, qty, nil, cartID, nil))
}

// Restock returns previously deducted units (cancellation of a confirmed
// order, customer return).
func (s *service) Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int, orderID *uuid.UUID) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock qty must be positive")
	}
	repo := s.repo.WithTx(tx)

	ok, err := repo.AddCounters(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found for product")
	}

	return repo.CreateMovement(ctx, newMovement(productID, enums.MovementTypeRestock, qty, orderID, nil, nil))
}

// AddStock is the standalone supplier-restock entry point, running its own
// transaction.
func (s *service) AddStock(ctx context.Context, productID uuid.UUID, qty int, note string) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.AddCounters(ctx, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory not found for product")
		}
		var meta types.JSONMap
		if note != "" {
			meta = types.JSONMap{"note": note}
		}
		return repo.CreateMovement(ctx, newMovement(productID, enums.MovementTypeRestock, qty, nil, nil, meta))
	})
}

func newMovement(productID uuid.UUID, movementType enums.MovementType, qty int, orderID, cartID *uuid.UUID, meta types.JSONMap) *models.InventoryMovement {
	return &models.InventoryMovement{
		ID:           uuid.New(),
		ProductID:    productID,
		MovementType: movementType,
		Status:       enums.MovementStatusApproved,
		Qty:          qty,
		OrderID:      orderID,
		CartID:       cartID,
		Metadata:     meta,
	}
}
