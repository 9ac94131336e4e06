package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/api/responses"
	"github.com/tajerhq/tajer-backend/api/validators"
	"github.com/tajerhq/tajer-backend/internal/coupons"
	"github.com/tajerhq/tajer-backend/pkg/db/models"
	"github.com/tajerhq/tajer-backend/pkg/enums"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/logger"
)

type createCouponRequest struct {
	Code         string     `json:"code" validate:"required"`
	Type         string     `json:"type" validate:"required"`
	Value        string     `json:"value" validate:"required"`
	MaxDiscount  *string    `json:"max_discount,omitempty"`
	MinSpend     *string    `json:"min_spend,omitempty"`
	MaxSpend     *string    `json:"max_spend,omitempty"`
	UsageLimit   *int       `json:"usage_limit,omitempty" validate:"omitempty,gt=0"`
	PerUserLimit *int       `json:"per_user_limit,omitempty" validate:"omitempty,gt=0"`
	NewUsersOnly bool       `json:"new_users_only"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ProductIDs   []string   `json:"product_ids,omitempty" validate:"omitempty,dive,uuid"`
	ExcludedIDs  []string   `json:"excluded_ids,omitempty" validate:"omitempty,dive,uuid"`
	Categories   []string   `json:"categories,omitempty"`
	ExcludedCats []string   `json:"excluded_cats,omitempty"`
}

func (r createCouponRequest) toModel() (*models.Coupon, error) {
	couponType, err := enums.ParseCouponType(strings.TrimSpace(r.Type))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon type")
	}

	value, err := decimal.NewFromString(strings.TrimSpace(r.Value))
	if err != nil || value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be a non-negative decimal")
	}

	coupon := &models.Coupon{
		Code:         strings.TrimSpace(r.Code),
		Type:         couponType,
		Value:        value,
		UsageLimit:   r.UsageLimit,
		PerUserLimit: r.PerUserLimit,
		NewUsersOnly: r.NewUsersOnly,
		StartsAt:     r.StartsAt,
		ExpiresAt:    r.ExpiresAt,
		ProductIDs:   pq.StringArray(r.ProductIDs),
		ExcludedIDs:  pq.StringArray(r.ExcludedIDs),
		Categories:   pq.StringArray(r.Categories),
		ExcludedCats: pq.StringArray(r.ExcludedCats),
		IsActive:     true,
	}

	if coupon.MaxDiscount, err = parseOptionalAmount(r.MaxDiscount, "max_discount"); err != nil {
		return nil, err
	}
	if coupon.MinSpend, err = parseOptionalAmount(r.MinSpend, "min_spend"); err != nil {
		return nil, err
	}
	if coupon.MaxSpend, err = parseOptionalAmount(r.MaxSpend, "max_spend"); err != nil {
		return nil, err
	}
	return coupon, nil
}

func parseOptionalAmount(raw *string, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a non-negative decimal")
	}
	return &amount, nil
}

// CreateCoupon registers a promotional code.
func CreateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := payload.toModel()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), coupon)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// CouponByCode returns a coupon by its public code.
func CouponByCode(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required"))
			return
		}

		coupon, err := svc.GetByCode(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, coupon)
	}
}
