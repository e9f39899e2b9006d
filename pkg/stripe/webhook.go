package stripe

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrSigningSecretMissing means no webhook secret is configured, so no
// delivery can be authenticated.
var ErrSigningSecretMissing = errors.New("stripe webhook secret is not configured")

// ConstructEvent verifies the Stripe-Signature header against payload and
// decodes the event.
func (c *Client) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	secret := c.SigningSecret()
	if secret == "" {
		return stripe.Event{}, ErrSigningSecretMissing
	}
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	return event, nil
}
