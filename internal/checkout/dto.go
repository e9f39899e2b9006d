package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemInput is one cart line posted by the storefront.
type ItemInput struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int64     `json:"quantity"`
}

// CreateSessionInput is the body of POST /stores/{slug}/checkout.
type CreateSessionInput struct {
	Items           []ItemInput    `json:"items" validate:"required,min=1"`
	Email           string         `json:"email" validate:"required,email,max=320"`
	ShippingAddress *types.Address `json:"shippingAddress,omitempty"`
	SuccessURL      string         `json:"successUrl,omitempty" validate:"omitempty,url,max=2048"`
	CancelURL       string         `json:"cancelUrl,omitempty" validate:"omitempty,url,max=2048"`
}

func (in CreateSessionInput) lines() []helpers.Line {
	lines := make([]helpers.Line, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, helpers.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// SessionResult is returned to the storefront after a checkout is opened.
type SessionResult struct {
	CheckoutURL string    `json:"checkoutUrl"`
	SessionID   string    `json:"sessionId"`
	TestMode    bool      `json:"testMode,omitempty"`
	OrderID     uuid.UUID `json:"orderId"`
	TotalCents  int64     `json:"totalCents"`
}
