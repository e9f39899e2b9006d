package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment records money movement for an order. OrderID is unique so a
// completed checkout session can only ever produce one payment row.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StoreID         uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_payments_order"`
	AmountCents     int64               `gorm:"column:amount_cents;not null"`
	Currency        string              `gorm:"column:currency;not null;default:'usd'"`
	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'requires_payment'"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
