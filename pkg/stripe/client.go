package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	// ErrTestMode is returned by API calls on a client running without a usable secret key.
	ErrTestMode = errors.New("stripe client is running in test mode")
)

// Client wraps Stripe's checkout session API plus env-specific metadata.
// A client built from an empty or placeholder secret runs in test mode and
// never reaches the network.
type Client struct {
	sessions      *session.Client
	environment   string
	signingSecret string
	testMode      bool
}

// NewClient initializes the Stripe client from configuration.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.SecretKey)
	signingSecret := strings.TrimSpace(cfg.WebhookSecret)

	if IsTestMode(apiKey) {
		if logg != nil {
			logg.Warn(ctx, "stripe secret key missing or placeholder; checkout runs in test mode")
		}
		return &Client{environment: env, signingSecret: signingSecret, testMode: true}, nil
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}
	if signingSecret == "" && logg != nil {
		logg.Warn(ctx, "stripe webhook secret not configured; webhook deliveries will be rejected")
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: apiKey},
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// TestMode reports whether checkout sessions are synthesized locally.
func (c *Client) TestMode() bool {
	return c == nil || c.testMode
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
