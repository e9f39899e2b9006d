package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog listing owned by exactly one store. A nil Stock means
// the product is not inventory tracked.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID     uuid.UUID `gorm:"column:store_id;type:uuid;not null;index:idx_products_store_active,priority:1"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	PriceCents  int64     `gorm:"column:price_cents;not null"`
	Currency    string    `gorm:"column:currency;not null;default:'usd'"`
	ImageURL    *string   `gorm:"column:image_url"`
	Stock       *int64    `gorm:"column:stock"`
	Active      bool      `gorm:"column:active;not null;index:idx_products_store_active,priority:2"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// HasStockFor reports whether the product can cover qty units at read time.
func (p *Product) HasStockFor(qty int64) bool {
	if p == nil {
		return false
	}
	return p.Stock == nil || *p.Stock >= qty
}
