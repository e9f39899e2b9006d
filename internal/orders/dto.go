package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderDTO is the admin view of an order.
type OrderDTO struct {
	ID                uuid.UUID          `json:"id"`
	StoreID           uuid.UUID          `json:"storeId"`
	CustomerEmail     string             `json:"customerEmail"`
	Status            enums.OrderStatus  `json:"status"`
	TotalCents        int64              `json:"totalCents"`
	Total             string             `json:"total"`
	Currency          string             `json:"currency"`
	ShippingAddress   *types.Address     `json:"shippingAddress,omitempty"`
	CheckoutSessionID *string            `json:"checkoutSessionId,omitempty"`
	PaymentIntentID   *string            `json:"paymentIntentId,omitempty"`
	CheckoutMode      enums.CheckoutMode `json:"checkoutMode"`
	Items             []OrderItemDTO     `json:"items"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// OrderItemDTO is one line of an order. ProductTitle is empty once the
// product has been deleted.
type OrderItemDTO struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"productId"`
	ProductTitle   string    `json:"productTitle,omitempty"`
	Quantity       int64     `json:"quantity"`
	PriceCents     int64     `json:"priceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
}

// FromModel maps an order and its preloaded items.
func FromModel(m *models.Order, titles map[uuid.UUID]string) *OrderDTO {
	if m == nil {
		return nil
	}
	currency := money.NormalizeCurrency(m.Currency)
	dto := &OrderDTO{
		ID:                m.ID,
		StoreID:           m.StoreID,
		CustomerEmail:     m.CustomerEmail,
		Status:            m.Status,
		TotalCents:        m.TotalCents,
		Total:             money.Format(m.TotalCents, currency),
		Currency:          currency,
		ShippingAddress:   m.ShippingAddress,
		CheckoutSessionID: m.CheckoutSessionID,
		PaymentIntentID:   m.PaymentIntentID,
		CheckoutMode:      m.CheckoutMode,
		Items:             make([]OrderItemDTO, 0, len(m.Items)),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductTitle:   titles[item.ProductID],
			Quantity:       item.Quantity,
			PriceCents:     item.PriceCents,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	return dto
}

// UpdateOrderInput is the admin PATCH payload.
type UpdateOrderInput struct {
	Status          *enums.OrderStatus `json:"status,omitempty"`
	CustomerEmail   *string            `json:"customerEmail,omitempty" validate:"omitempty,email,max=320"`
	ShippingAddress *types.Address     `json:"shippingAddress,omitempty"`
}

// CompleteSessionInput identifies a paid checkout session. Lines are only
// used when no order exists for the session yet.
type CompleteSessionInput struct {
	StoreID         uuid.UUID
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Mode            enums.CheckoutMode
	Lines           []helpers.Line
}

// CompletionResult reports what a CompleteSession call changed.
type CompletionResult struct {
	Order          *models.Order
	Created        bool
	Transitioned   bool
	PaymentCreated bool
}

// PendingOrderInput describes an order recorded when a checkout session is
// opened. Items must already be priced.
type PendingOrderInput struct {
	StoreID         uuid.UUID
	SessionID       string
	CustomerEmail   string
	Currency        string
	Mode            enums.CheckoutMode
	ShippingAddress *types.Address
	Items           []models.OrderItem
}

// ConfirmResult is returned by the order confirmation endpoint.
type ConfirmResult struct {
	Success bool              `json:"success"`
	OrderID uuid.UUID         `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
}
