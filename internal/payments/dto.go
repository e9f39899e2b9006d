package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

// PaymentDTO is the admin view of a payment.
type PaymentDTO struct {
	ID              uuid.UUID           `json:"id"`
	StoreID         uuid.UUID           `json:"storeId"`
	OrderID         uuid.UUID           `json:"orderId"`
	AmountCents     int64               `json:"amountCents"`
	Amount          string              `json:"amount"`
	Currency        string              `json:"currency"`
	Status          enums.PaymentStatus `json:"status"`
	PaymentIntentID *string             `json:"paymentIntentId"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// FromModel maps a payment row.
func FromModel(m *models.Payment) *PaymentDTO {
	if m == nil {
		return nil
	}
	currency := money.NormalizeCurrency(m.Currency)
	return &PaymentDTO{
		ID:              m.ID,
		StoreID:         m.StoreID,
		OrderID:         m.OrderID,
		AmountCents:     m.AmountCents,
		Amount:          money.Format(m.AmountCents, currency),
		Currency:        currency,
		Status:          m.Status,
		PaymentIntentID: m.PaymentIntentID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// CreatePaymentInput is the admin payload for recording a payment by hand.
type CreatePaymentInput struct {
	OrderID         uuid.UUID            `json:"orderId" validate:"required"`
	AmountCents     int64                `json:"amountCents" validate:"min=0"`
	Currency        string               `json:"currency" validate:"omitempty,len=3,alpha"`
	Status          *enums.PaymentStatus `json:"status,omitempty"`
	PaymentIntentID *string              `json:"paymentIntentId,omitempty" validate:"omitempty,max=255"`
}

// UpdatePaymentInput is a partial update of a payment.
type UpdatePaymentInput struct {
	AmountCents     *int64               `json:"amountCents,omitempty" validate:"omitempty,min=0"`
	Status          *enums.PaymentStatus `json:"status,omitempty"`
	PaymentIntentID *string              `json:"paymentIntentId,omitempty" validate:"omitempty,max=255"`
}
