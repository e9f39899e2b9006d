package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
)

// MaxImageURLLength is the longest image URL forwarded to hosted checkout.
const MaxImageURLLength = 2048

// PaymentStatusPaid is the checkout session payment status once funds are captured.
const PaymentStatusPaid = "paid"

// Checkout session lifecycle states.
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// LineItem is one priced row of a hosted checkout session.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Currency    string
	Quantity    int64
}

// CheckoutSessionParams describes a hosted payment-mode checkout session.
type CheckoutSessionParams struct {
	LineItems     []LineItem
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

// CheckoutSession is the subset of a Stripe checkout session the storefront reads.
type CheckoutSession struct {
	ID              string
	URL             string
	Status          string
	PaymentStatus   string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	Metadata        map[string]string
}

// Paid reports whether the session's payment has been captured.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Expired reports whether the session closed without payment.
func (s CheckoutSession) Expired() bool {
	return s.Status == SessionStatusExpired
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutSessionParams) (*CheckoutSession, error) {
	if c.TestMode() {
		return nil, ErrTestMode
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.Context = ctx
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for key, value := range in.Metadata {
		params.AddMetadata(key, value)
	}

	for _, item := range in.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if desc := strings.TrimSpace(item.Description); desc != "" {
			productData.Description = stripe.String(desc)
		}
		if image := UsableImageURL(item.ImageURL); image != "" {
			productData.Images = []*string{stripe.String(image)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(strings.ToLower(item.Currency)),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	created, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	out := FromStripeSession(created)
	return &out, nil
}

// RetrieveCheckoutSession fetches a checkout session by id.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if c.TestMode() {
		return nil, ErrTestMode
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	fetched, err := c.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	out := FromStripeSession(fetched)
	return &out, nil
}

// ExpireCheckoutSession closes an open checkout session so it can no longer
// be paid.
func (c *Client) ExpireCheckoutSession(ctx context.Context, id string) error {
	if c.TestMode() {
		return ErrTestMode
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := c.sessions.Expire(id, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", id, err)
	}
	return nil
}

// FromStripeSession flattens a Stripe checkout session.
func FromStripeSession(s *stripe.CheckoutSession) CheckoutSession {
	if s == nil {
		return CheckoutSession{}
	}
	out := CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      strings.ToLower(string(s.Currency)),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out
}

// UsableImageURL returns url when hosted checkout can render it, or "" for
// inline data URIs and oversized values.
func UsableImageURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" || len(url) > MaxImageURLLength {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(url), "data:") {
		return ""
	}
	return url
}
