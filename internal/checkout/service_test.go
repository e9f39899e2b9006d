package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/stores"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type fakeGateway struct {
	testMode bool
	session  *stripe.CheckoutSession
	err      error
	params   []stripe.CheckoutSessionParams
	expired  []string
}

func (f *fakeGateway) TestMode() bool { return f.testMode }

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, in stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = append(f.params, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeGateway) ExpireCheckoutSession(_ context.Context, id string) error {
	f.expired = append(f.expired, id)
	return nil
}

type staticLoader struct {
	rows []models.Product
}

func (s staticLoader) FindActiveByIDs(context.Context, uuid.UUID, []uuid.UUID) ([]models.Product, error) {
	return s.rows, nil
}

type env struct {
	conn    *gorm.DB
	store   *stores.StoreDTO
	gateway *fakeGateway
	orders  orders.Service
	build   func(loader ProductLoader) Service
}

func newEnv(t *testing.T, testMode bool) *env {
	t.Helper()
	client := dbtest.NewClient(t)
	conn := client.DB()
	row := &models.Store{Slug: "shop", Name: "Shop", Status: enums.StoreStatusActive, Currency: "usd"}
	require.NoError(t, conn.Create(row).Error)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Payments: payments.NewRepository(conn),
		Tx:       client,
	})
	require.NoError(t, err)

	e := &env{
		conn:    conn,
		store:   stores.FromModel(row),
		gateway: &fakeGateway{testMode: testMode},
		orders:  orderSvc,
	}
	e.build = func(loader ProductLoader) Service {
		svc, err := NewService(ServiceParams{
			Products:      loader,
			Orders:        orderSvc,
			Gateway:       e.gateway,
			Tx:            client,
			PublicBaseURL: "https://shop.test/",
		})
		require.NoError(t, err)
		return svc
	}
	return e
}

func (e *env) service() Service {
	return e.build(products.NewRepository(e.conn))
}

func (e *env) product(t *testing.T, title string, price int64, stock *int64, active bool) *models.Product {
	t.Helper()
	p := &models.Product{StoreID: e.store.ID, Title: title, PriceCents: price, Currency: "usd", Stock: stock, Active: active}
	require.NoError(t, e.conn.Create(p).Error)
	return p
}

func (e *env) stockOf(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	var p models.Product
	require.NoError(t, e.conn.First(&p, "id = ?", id).Error)
	require.NotNil(t, p.Stock)
	return *p.Stock
}

func (e *env) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateSessionTestModeCompletesOrder(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	mug := e.product(t, "Mug", 1200, int64Ptr(5), true)
	tee := e.product(t, "Tee", 2500, nil, true)

	res, err := e.service().CreateSession(ctx, e.store, CreateSessionInput{
		Email: "buyer@example.com",
		Items: []ItemInput{{ProductID: mug.ID, Quantity: 1}, {ProductID: tee.ID, Quantity: 1}, {ProductID: mug.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, res.TestMode)
	assert.Equal(t, int64(2*1200+2500), res.TotalCents)
	assert.True(t, strings.HasPrefix(res.SessionID, "cs_test_mode_"))

	u, err := url.Parse(res.CheckoutURL)
	require.NoError(t, err)
	assert.Equal(t, "/stores/shop/checkout/success", u.Path)
	assert.Equal(t, "true", u.Query().Get("test_mode"))
	assert.Equal(t, res.SessionID, u.Query().Get("session_id"))

	var order models.Order
	require.NoError(t, e.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, enums.CheckoutModeTest, order.CheckoutMode)
	assert.Len(t, order.Items, 2)
	require.NotNil(t, order.PaymentIntentID)
	assert.True(t, strings.HasPrefix(*order.PaymentIntentID, "pi_test_mode_"))

	var payment models.Payment
	require.NoError(t, e.conn.First(&payment, "order_id = ?", order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, res.TotalCents, payment.AmountCents)
	assert.Equal(t, int64(3), e.stockOf(t, mug.ID))
	assert.Empty(t, e.gateway.params)

	confirmed, err := e.orders.Confirm(ctx, e.store.ID, res.SessionID)
	require.NoError(t, err)
	assert.True(t, confirmed.Success)
}

func TestCreateSessionRejectsBadCarts(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	svc := e.service()
	mug := e.product(t, "Mug", 1200, int64Ptr(2), true)
	hidden := e.product(t, "Hidden", 100, nil, false)
	vault := e.product(t, "Vault", 1_000_000_000_000_000_000, nil, true)

	cases := map[string]CreateSessionInput{
		"empty items":     {Email: "a@b.co"},
		"missing email":   {Items: []ItemInput{{ProductID: mug.ID, Quantity: 1}}},
		"zero quantity":   {Email: "a@b.co", Items: []ItemInput{{ProductID: mug.ID, Quantity: 0}}},
		"over stock":      {Email: "a@b.co", Items: []ItemInput{{ProductID: mug.ID, Quantity: 3}}},
		"merged overflow": {Email: "a@b.co", Items: []ItemInput{{ProductID: mug.ID, Quantity: 2}, {ProductID: mug.ID, Quantity: 1}}},
		"unknown product": {Email: "a@b.co", Items: []ItemInput{{ProductID: uuid.New(), Quantity: 1}}},
		"inactive":        {Email: "a@b.co", Items: []ItemInput{{ProductID: hidden.ID, Quantity: 1}}},
		"total overflow":  {Email: "a@b.co", Items: []ItemInput{{ProductID: vault.ID, Quantity: 10}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, e.store, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, int64(0), e.orderCount(t))
	assert.Equal(t, int64(2), e.stockOf(t, mug.ID))
}

func TestCreateSessionLastUnitRace(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	poster := e.product(t, "Poster", 800, int64Ptr(1), true)

	var snapshot []models.Product
	require.NoError(t, e.conn.Where("id = ?", poster.ID).Find(&snapshot).Error)
	input := CreateSessionInput{Email: "a@b.co", Items: []ItemInput{{ProductID: poster.ID, Quantity: 1}}}

	_, err := e.service().CreateSession(ctx, e.store, input)
	require.NoError(t, err)

	// The second request read stock before the first one committed.
	_, err = e.build(staticLoader{rows: snapshot}).CreateSession(ctx, e.store, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	assert.Equal(t, int64(1), e.orderCount(t))
	assert.Equal(t, int64(0), e.stockOf(t, poster.ID))
}

func TestCreateSessionLiveMode(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	mug := e.product(t, "Mug", 1200, int64Ptr(5), true)
	e.gateway.session = &stripe.CheckoutSession{ID: "cs_live_123", URL: "https://checkout.stripe.test/c/cs_live_123"}

	res, err := e.service().CreateSession(ctx, e.store, CreateSessionInput{
		Email:      "buyer@example.com",
		Items:      []ItemInput{{ProductID: mug.ID, Quantity: 2}},
		SuccessURL: "https://client.test/done?ref=1",
	})
	require.NoError(t, err)
	assert.False(t, res.TestMode)
	assert.Equal(t, "https://checkout.stripe.test/c/cs_live_123", res.CheckoutURL)
	assert.Equal(t, int64(2400), res.TotalCents)

	require.Len(t, e.gateway.params, 1)
	params := e.gateway.params[0]
	assert.Equal(t, "https://client.test/done?ref=1&session_id={CHECKOUT_SESSION_ID}", params.SuccessURL)
	assert.Equal(t, "https://shop.test/stores/shop/checkout/cancel", params.CancelURL)
	assert.Equal(t, e.store.ID.String(), params.Metadata[stripe.MetadataStoreID])
	items, err := stripe.DecodeMetadataItems(params.Metadata[stripe.MetadataItems])
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mug.ID.String(), items[0].ProductID)
	assert.Equal(t, int64(2), items[0].Quantity)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, int64(1200), params.LineItems[0].UnitAmount)

	var order models.Order
	require.NoError(t, e.conn.First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.CheckoutSessionID)
	assert.Equal(t, "cs_live_123", *order.CheckoutSessionID)
	assert.Equal(t, int64(3), e.stockOf(t, mug.ID))
}

func TestCreateSessionLiveModeFailures(t *testing.T) {
	e := newEnv(t, false)
	ctx := context.Background()
	poster := e.product(t, "Poster", 800, int64Ptr(1), true)
	input := CreateSessionInput{Email: "a@b.co", Items: []ItemInput{{ProductID: poster.ID, Quantity: 1}}}

	e.gateway.err = errors.New("stripe unavailable")
	_, err := e.service().CreateSession(ctx, e.store, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, int64(0), e.orderCount(t))

	var snapshot []models.Product
	require.NoError(t, e.conn.Where("id = ?", poster.ID).Find(&snapshot).Error)
	require.NoError(t, e.conn.Model(&models.Product{}).Where("id = ?", poster.ID).Update("stock", 0).Error)

	e.gateway.err = nil
	e.gateway.session = &stripe.CheckoutSession{ID: "cs_live_orphan", URL: "https://checkout.stripe.test/x"}
	_, err = e.build(staticLoader{rows: snapshot}).CreateSession(ctx, e.store, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, []string{"cs_live_orphan"}, e.gateway.expired)
	assert.Equal(t, int64(0), e.orderCount(t))
}
