package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/stores"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	testSessionPrefix = "cs_test_mode_"
	testIntentPrefix  = "pi_test_mode_"

	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
)

// ProductLoader batch-loads purchasable products for a store.
type ProductLoader interface {
	FindActiveByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
}

// Gateway opens hosted checkout sessions.
type Gateway interface {
	TestMode() bool
	CreateCheckoutSession(ctx context.Context, in stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, id string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service opens checkout sessions for storefront carts.
type Service interface {
	CreateSession(ctx context.Context, store *stores.StoreDTO, input CreateSessionInput) (*SessionResult, error)
}

// ServiceParams wires the checkout service. Metrics and Logger are optional.
type ServiceParams struct {
	Products      ProductLoader
	Orders        orders.Service
	Gateway       Gateway
	Tx            txRunner
	PublicBaseURL string
	Metrics       *metrics.CheckoutMetrics
	Logger        *logger.Logger
}

type service struct {
	products      ProductLoader
	orders        orders.Service
	gateway       Gateway
	tx            txRunner
	publicBaseURL string
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
	now           func() time.Time
}

// NewService validates dependencies and returns the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("checkout gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		products:      params.Products,
		orders:        params.Orders,
		gateway:       params.Gateway,
		tx:            params.Tx,
		publicBaseURL: strings.TrimRight(params.PublicBaseURL, "/"),
		metrics:       params.Metrics,
		logg:          logg,
		now:           time.Now,
	}, nil
}

// cart is a validated, priced checkout request.
type cart struct {
	store      *stores.StoreDTO
	email      string
	address    *types.Address
	products   map[uuid.UUID]models.Product
	items      []models.OrderItem
	totalCents int64
	successURL string
	cancelURL  string
}

func (s *service) CreateSession(ctx context.Context, store *stores.StoreDTO, input CreateSessionInput) (*SessionResult, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	mode := enums.CheckoutModeLive
	if s.gateway.TestMode() {
		mode = enums.CheckoutModeTest
	}
	started := s.now()

	var result *SessionResult
	c, err := s.buildCart(ctx, store, input)
	if err == nil {
		if mode == enums.CheckoutModeTest {
			result, err = s.createTestSession(ctx, c)
		} else {
			result, err = s.createLiveSession(ctx, c)
		}
	}

	s.metrics.ObserveCheckoutDuration(mode.String(), s.now().Sub(started))
	s.metrics.IncCheckout(mode.String(), outcomeFor(err))
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":    result.OrderID.String(),
		"total_cents": result.TotalCents,
		"mode":        mode.String(),
	}), "checkout session created")
	return result, nil
}

func (s *service) buildCart(ctx context.Context, store *stores.StoreDTO, input CreateSessionInput) (*cart, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	lines, err := helpers.NormalizeLines(input.lines())
	if err != nil {
		return nil, err
	}
	rows, err := s.products.FindActiveByIDs(ctx, store.ID, helpers.ProductIDs(lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	items, err := helpers.BuildOrderItems(rows, lines, true)
	if err != nil {
		return nil, err
	}
	totalCents, err := helpers.ComputeTotal(items)
	if err != nil {
		return nil, err
	}

	c := &cart{
		store:      store,
		email:      email,
		products:   make(map[uuid.UUID]models.Product, len(rows)),
		items:      items,
		totalCents: totalCents,
		successURL: strings.TrimSpace(input.SuccessURL),
		cancelURL:  strings.TrimSpace(input.CancelURL),
	}
	if input.ShippingAddress != nil {
		addr := input.ShippingAddress.Normalize()
		c.address = &addr
	}
	for _, row := range rows {
		c.products[row.ID] = row
	}
	if c.successURL == "" {
		c.successURL = s.storeURL(store.Slug, "checkout/success")
	}
	if c.cancelURL == "" {
		c.cancelURL = s.storeURL(store.Slug, "checkout/cancel")
	}
	return c, nil
}

// createTestSession records and completes the order in one transaction,
// standing in for the hosted payment page.
func (s *service) createTestSession(ctx context.Context, c *cart) (*SessionResult, error) {
	sessionID := testSessionPrefix + uuid.NewString()
	var completion *orders.CompletionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.CreatePendingTx(ctx, tx, s.pendingInput(c, sessionID, enums.CheckoutModeTest))
		if err != nil {
			return err
		}
		completion, err = s.orders.CompleteSessionTx(ctx, tx, orders.CompleteSessionInput{
			StoreID:         c.store.ID,
			SessionID:       sessionID,
			PaymentIntentID: testIntentPrefix + uuid.NewString(),
			AmountTotal:     order.TotalCents,
			Currency:        order.Currency,
			CustomerEmail:   c.email,
			Mode:            enums.CheckoutModeTest,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	checkoutURL, err := appendQuery(c.successURL, url.Values{
		"session_id": {sessionID},
		"test_mode":  {"true"},
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		CheckoutURL: checkoutURL,
		SessionID:   sessionID,
		TestMode:    true,
		OrderID:     completion.Order.ID,
		TotalCents:  completion.Order.TotalCents,
	}, nil
}

// createLiveSession opens the hosted session first so the pending order can
// be keyed by its id. A failed order insert expires the session again.
func (s *service) createLiveSession(ctx context.Context, c *cart) (*SessionResult, error) {
	params := stripe.CheckoutSessionParams{
		SuccessURL:    withSessionPlaceholder(c.successURL),
		CancelURL:     c.cancelURL,
		CustomerEmail: c.email,
		Metadata: map[string]string{
			stripe.MetadataStoreID:   c.store.ID.String(),
			stripe.MetadataStoreSlug: c.store.Slug,
		},
	}
	currency := money.NormalizeCurrency(c.store.Currency)
	metaItems := make([]stripe.MetadataItem, 0, len(c.items))
	for _, item := range c.items {
		product := c.products[item.ProductID]
		line := stripe.LineItem{
			Name:        product.Title,
			Description: product.Description,
			UnitAmount:  item.PriceCents,
			Currency:    currency,
			Quantity:    item.Quantity,
		}
		if product.ImageURL != nil {
			line.ImageURL = *product.ImageURL
		}
		params.LineItems = append(params.LineItems, line)
		metaItems = append(metaItems, stripe.MetadataItem{ProductID: item.ProductID.String(), Quantity: item.Quantity})
	}
	encoded, fits, err := stripe.EncodeMetadataItems(metaItems)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session metadata")
	}
	if fits {
		params.Metadata[stripe.MetadataItems] = encoded
	} else {
		s.logg.Warn(s.logg.WithField(ctx, "lines", len(metaItems)), "cart too large for session metadata; relying on pending order")
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.orders.CreatePendingTx(ctx, tx, s.pendingInput(c, session.ID, enums.CheckoutModeLive))
		return err
	})
	if err != nil {
		if expErr := s.gateway.ExpireCheckoutSession(ctx, session.ID); expErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "checkout_session_id", session.ID), "expire orphaned checkout session", expErr)
		}
		return nil, err
	}
	return &SessionResult{
		CheckoutURL: session.URL,
		SessionID:   session.ID,
		OrderID:     order.ID,
		TotalCents:  order.TotalCents,
	}, nil
}

func (s *service) pendingInput(c *cart, sessionID string, mode enums.CheckoutMode) orders.PendingOrderInput {
	return orders.PendingOrderInput{
		StoreID:         c.store.ID,
		SessionID:       sessionID,
		CustomerEmail:   c.email,
		Currency:        c.store.Currency,
		Mode:            mode,
		ShippingAddress: c.address,
		Items:           c.items,
	}
}

func (s *service) storeURL(slug, path string) string {
	return fmt.Sprintf("%s/stores/%s/%s", s.publicBaseURL, url.PathEscape(slug), path)
}

func appendQuery(raw string, values url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid redirect url")
	}
	q := u.Query()
	for key, vals := range values {
		for _, v := range vals {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withSessionPlaceholder appends the literal session id template; it must
// not be URL-encoded or the provider will not substitute it.
func withSessionPlaceholder(raw string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "session_id=" + sessionIDPlaceholder
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
