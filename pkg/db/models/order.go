package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a customer purchase. CheckoutSessionID is unique: it is the
// idempotency key shared by the checkout, confirmation and webhook paths.
type Order struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index:idx_orders_store_created,priority:1"`
	CustomerEmail     string             `gorm:"column:customer_email;not null"`
	Status            enums.OrderStatus  `gorm:"column:status;not null;default:'pending'"`
	TotalCents        int64              `gorm:"column:total_cents;not null"`
	Currency          string             `gorm:"column:currency;not null;default:'usd'"`
	ShippingAddress   *types.Address     `gorm:"column:shipping_address;type:text"`
	CheckoutSessionID *string            `gorm:"column:checkout_session_id;uniqueIndex:idx_orders_checkout_session"`
	PaymentIntentID   *string            `gorm:"column:payment_intent_id"`
	CheckoutMode      enums.CheckoutMode `gorm:"column:checkout_mode;not null;default:'live'"`
	Items             []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime;index:idx_orders_store_created,priority:2"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
