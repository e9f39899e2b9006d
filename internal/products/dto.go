package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ProductDTO is the product as returned by the storefront and admin APIs.
type ProductDTO struct {
	ID          uuid.UUID `json:"id"`
	StoreID     uuid.UUID `json:"storeId"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	ImageURL    *string   `json:"imageUrl"`
	Stock       *int64    `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FromModel maps a product row into its API shape.
func FromModel(m *models.Product) *ProductDTO {
	if m == nil {
		return nil
	}
	currency := money.NormalizeCurrency(m.Currency)
	return &ProductDTO{
		ID:          m.ID,
		StoreID:     m.StoreID,
		Title:       m.Title,
		Slug:        DeriveSlug(m.Title),
		Description: m.Description,
		PriceCents:  m.PriceCents,
		Price:       money.Format(m.PriceCents, currency),
		Currency:    currency,
		ImageURL:    m.ImageURL,
		Stock:       m.Stock,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromModels maps a slice of product rows.
func FromModels(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

// CreateProductInput holds the admin payload for a new product.
type CreateProductInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	PriceCents  int64   `json:"priceCents" validate:"min=0,max=99999999"`
	Currency    string  `json:"currency" validate:"omitempty,len=3,alpha"`
	ImageURL    *string `json:"imageUrl,omitempty" validate:"omitempty,max=4096"`
	Stock       *int64  `json:"stock,omitempty" validate:"omitempty,min=0"`
	Active      *bool   `json:"active,omitempty"`
}

// UpdateProductInput is a partial update: only fields present in the request
// body are written. Stock and ImageURL distinguish an explicit null (clear)
// from an absent key (leave as is).
type UpdateProductInput struct {
	Title       *string              `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceCents  *int64               `json:"priceCents,omitempty" validate:"omitempty,min=0,max=99999999"`
	Currency    *string              `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	ImageURL    types.NullableString `json:"imageUrl"`
	Stock       types.NullableInt64  `json:"stock"`
	Active      *bool                `json:"active,omitempty"`
}
