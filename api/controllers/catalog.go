package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tajerhq/tajer-backend/api/responses"
	"github.com/tajerhq/tajer-backend/api/validators"
	"github.com/tajerhq/tajer-backend/internal/catalog"
	"github.com/tajerhq/tajer-backend/pkg/db/models"
	pkgerrors "github.com/tajerhq/tajer-backend/pkg/errors"
	"github.com/tajerhq/tajer-backend/pkg/logger"
)

type createProductRequest struct {
	SKU          string  `json:"sku" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Category     string  `json:"category"`
	Price        string  `json:"price" validate:"required"`
	SalePrice    *string `json:"sale_price,omitempty"`
	WeightKg     string  `json:"weight_kg"`
	IsActive     *bool   `json:"is_active,omitempty"`
	InitialStock int     `json:"initial_stock" validate:"min=0"`
}

func (r createProductRequest) toModel() (*models.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(r.Price))
	if err != nil || price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be a non-negative decimal")
	}

	product := &models.Product{
		SKU:      strings.TrimSpace(r.SKU),
		Name:     strings.TrimSpace(r.Name),
		Category: strings.TrimSpace(r.Category),
		Price:    price,
		IsActive: true,
	}

	if r.SalePrice != nil {
		sale, err := decimal.NewFromString(strings.TrimSpace(*r.SalePrice))
		if err != nil || sale.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_price must be a non-negative decimal")
		}
		product.SalePrice = &sale
	}
	if r.WeightKg != "" {
		weight, err := decimal.NewFromString(strings.TrimSpace(r.WeightKg))
		if err != nil || weight.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_kg must be a non-negative decimal")
		}
		product.WeightKg = weight
	}
	if r.IsActive != nil {
		product.IsActive = *r.IsActive
	}
	return product, nil
}

// CreateProduct registers a catalog listing with its opening stock level.
func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := payload.toModel()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateProduct(r.Context(), product, payload.InitialStock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductDetail returns one product with its inventory counters.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductBySKU looks a product up by its SKU.
func ProductBySKU(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sku := strings.TrimSpace(chi.URLParam(r, "sku"))
		if sku == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sku is required"))
			return
		}

		product, err := svc.GetProductBySKU(r.Context(), sku)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type addStockRequest struct {
	Qty  int    `json:"qty" validate:"required,gt=0"`
	Note string `json:"note"`
}

// AddStock receives inventory for a product.
func AddStock(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AddStock(r.Context(), id, payload.Qty, payload.Note); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}
