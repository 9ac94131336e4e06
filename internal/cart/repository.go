package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
)

// Repository defines persistence operations for carts, their lines, and
// attached coupons.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, cart *models.Cart) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, cartID uuid.UUID) error

	// MarkConverted flips an active cart to converted. Returns false when
	// the cart was not active, which blocks double checkout.
	MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) (bool, error)

	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ReassignItem(ctx context.Context, itemID, cartID uuid.UUID) error

	AttachCoupon(ctx context.Context, link *models.CartCoupon) error
	DetachCoupon(ctx context.Context, cartID, couponID uuid.UUID) error

	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Coupons.Coupon").
		First(&cart, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Coupons.Coupon").
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&cart).
		Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Coupons.Coupon").
		Where("session_id = ? AND status = ?", sessionID, enums.CartStatusActive).
		Order("created_at DESC").
		First(&cart).
		Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) Save(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).
		Omit("Items", "Coupons").
		Save(cart).
		Error
}

func (r *repository) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusActive).
		Updates(map[string]any{
			"status":       enums.CartStatusConverted,
			"converted_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Cart{}, "id = ?", cartID).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", itemID).Error
}

func (r *repository) ReassignItem(ctx context.Context, itemID, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumn("cart_id", cartID).
		Error
}

func (r *repository) AttachCoupon(ctx context.Context, link *models.CartCoupon) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *repository) DetachCoupon(ctx context.Context, cartID, couponID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.CartCoupon{}, "cart_id = ? AND coupon_id = ?", cartID, couponID).
		Error
}

func (r *repository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND expires_at < ?", enums.CartStatusActive, cutoff).
		Limit(limit).
		Find(&carts).
		Error
	return carts, err
}
