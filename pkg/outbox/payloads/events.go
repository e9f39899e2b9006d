// Package payloads defines the data carried by each outbox event type.
package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderPaidEvent is emitted once, when an order moves from pending to paid.
type OrderPaidEvent struct {
	OrderID           uuid.UUID          `json:"orderId"`
	StoreID           uuid.UUID          `json:"storeId"`
	Status            enums.OrderStatus  `json:"status"`
	TotalCents        int64              `json:"totalCents"`
	Currency          string             `json:"currency"`
	CustomerEmail     string             `json:"customerEmail"`
	CheckoutSessionID string             `json:"checkoutSessionId,omitempty"`
	PaymentIntentID   string             `json:"paymentIntentId,omitempty"`
	CheckoutMode      enums.CheckoutMode `json:"checkoutMode"`
	Items             []OrderLine        `json:"items"`
}

// OrderLine is one purchased product.
type OrderLine struct {
	ProductID  uuid.UUID `json:"productId"`
	Quantity   int64     `json:"quantity"`
	PriceCents int64     `json:"priceCents"`
}

// OrderCancelledEvent is emitted when a pending order is cancelled because its
// checkout session expired or its asynchronous payment failed.
type OrderCancelledEvent struct {
	OrderID           uuid.UUID `json:"orderId"`
	StoreID           uuid.UUID `json:"storeId"`
	CheckoutSessionID string    `json:"checkoutSessionId,omitempty"`
	Reason            string    `json:"reason"`
	StockReleased     bool      `json:"stockReleased"`
}
