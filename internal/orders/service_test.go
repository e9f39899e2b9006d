package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type fakeSessions struct {
	session *stripe.CheckoutSession
	err     error
	calls   int
}

func (f *fakeSessions) RetrieveCheckoutSession(context.Context, string) (*stripe.CheckoutSession, error) {
	f.calls++
	return f.session, f.err
}

type fixture struct {
	client    *db.Client
	conn      *gorm.DB
	svc       Service
	sessions  *fakeSessions
	store     *models.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	conn := client.DB()
	store := &models.Store{Slug: "shop", Status: enums.StoreStatusActive, Currency: "usd"}
	require.NoError(t, conn.Create(store).Error)

	sessions := &fakeSessions{}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Payments: payments.NewRepository(conn),
		Tx:       client,
		Sessions: sessions,
		Events:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return &fixture{client: client, conn: conn, svc: svc, sessions: sessions, store: store}
}

func (f *fixture) product(t *testing.T, title string, price int64, stock *int64) *models.Product {
	t.Helper()
	p := &models.Product{StoreID: f.store.ID, Title: title, PriceCents: price, Currency: "usd", Stock: stock, Active: true}
	require.NoError(t, f.conn.Create(p).Error)
	return p
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	require.NotNil(t, p.Stock)
	return *p.Stock
}

func (f *fixture) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) openSession(t *testing.T, sessionID string, items []models.OrderItem) *models.Order {
	t.Helper()
	var order *models.Order
	require.NoError(t, f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		order, err = f.svc.CreatePendingTx(context.Background(), tx, PendingOrderInput{
			StoreID:       f.store.ID,
			SessionID:     sessionID,
			CustomerEmail: "buyer@example.com",
			Currency:      "usd",
			Mode:          enums.CheckoutModeLive,
			Items:         items,
		})
		return err
	}))
	return order
}

func int64Ptr(v int64) *int64 { return &v }

func TestConfirmThenWebhookCreatesNothingTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	order := f.openSession(t, "cs_live_1", []models.OrderItem{{ProductID: mug.ID, Quantity: 2, PriceCents: 1200}})
	assert.Equal(t, int64(2400), order.TotalCents)
	assert.Equal(t, int64(3), f.stockOf(t, mug.ID))

	first, err := f.svc.CompleteSession(ctx, CompleteSessionInput{StoreID: f.store.ID, SessionID: "cs_live_1", PaymentIntentID: "pi_1", AmountTotal: 2400, Currency: "usd"})
	require.NoError(t, err)
	assert.True(t, first.Transitioned)
	assert.True(t, first.PaymentCreated)
	assert.False(t, first.Created)
	assert.Equal(t, enums.OrderStatusPaid, first.Order.Status)
	require.NotNil(t, first.Order.PaymentIntentID)
	assert.Equal(t, "pi_1", *first.Order.PaymentIntentID)

	second, err := f.svc.CompleteSession(ctx, CompleteSessionInput{
		StoreID:         f.store.ID,
		SessionID:       "cs_live_1",
		PaymentIntentID: "pi_1",
		AmountTotal:     2400,
		Lines:           []helpers.Line{{ProductID: mug.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.False(t, second.Transitioned)
	assert.False(t, second.PaymentCreated)
	assert.False(t, second.Created)
	assert.Equal(t, order.ID, second.Order.ID)

	assert.EqualValues(t, 1, f.count(t, &models.Order{}))
	assert.EqualValues(t, 1, f.count(t, &models.OrderItem{}))
	assert.EqualValues(t, 1, f.count(t, &models.Payment{}))
	assert.Equal(t, int64(3), f.stockOf(t, mug.ID))

	events := f.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderPaid, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)

	envelope, err := outbox.DecodeEnvelope(events[0].Payload)
	require.NoError(t, err)
	var paid payloads.OrderPaidEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &paid))
	assert.Equal(t, int64(2400), paid.TotalCents)
	assert.Equal(t, "pi_1", paid.PaymentIntentID)
	require.Len(t, paid.Items, 1)
	assert.Equal(t, mug.ID, paid.Items[0].ProductID)
}

func TestCompleteSessionCreatesMissingOrderFromLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	tee := f.product(t, "Tee", 2500, nil)

	result, err := f.svc.CompleteSession(ctx, CompleteSessionInput{
		StoreID:         f.store.ID,
		SessionID:       "cs_live_webhook",
		PaymentIntentID: "pi_2",
		AmountTotal:     4900,
		Currency:        "usd",
		CustomerEmail:   "buyer@example.com",
		Lines:           []helpers.Line{{ProductID: mug.ID, Quantity: 2}, {ProductID: tee.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.True(t, result.Transitioned)
	assert.True(t, result.PaymentCreated)
	assert.Equal(t, enums.OrderStatusPaid, result.Order.Status)
	assert.Equal(t, int64(4900), result.Order.TotalCents)
	assert.Len(t, result.Order.Items, 2)
	assert.Equal(t, int64(3), f.stockOf(t, mug.ID))
}

func TestCompleteSessionWithoutOrderOrLinesIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CompleteSession(context.Background(), CompleteSessionInput{StoreID: f.store.ID, SessionID: "cs_unknown"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.EqualValues(t, 0, f.count(t, &models.Payment{}))
}

func TestCompleteSessionStockShortfallRecordsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	poster := f.product(t, "Poster", 800, int64Ptr(1))

	result, err := f.svc.CompleteSession(ctx, CompleteSessionInput{
		StoreID:         f.store.ID,
		SessionID:       "cs_live_short",
		PaymentIntentID: "pi_3",
		AmountTotal:     4000,
		Lines:           []helpers.Line{{ProductID: mug.ID, Quantity: 2}, {ProductID: poster.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.False(t, result.Transitioned)
	assert.True(t, result.PaymentCreated)
	assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)

	assert.Equal(t, int64(5), f.stockOf(t, mug.ID))
	assert.Equal(t, int64(1), f.stockOf(t, poster.ID))
	assert.Empty(t, f.outboxEvents(t))

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "order_id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, int64(4000), payment.AmountCents)
}

func TestCompleteSessionUnusableLinesRecordsCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(50000))
	vault := f.product(t, "Vault", 1_000_000_000_000_000_000, nil)

	cases := map[string][]helpers.Line{
		"quantity over limit": {{ProductID: mug.ID, Quantity: helpers.MaxLineQuantity + 1}},
		"total overflow":      {{ProductID: vault.ID, Quantity: 10}},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			sessionID := "cs_live_" + strings.ReplaceAll(name, " ", "_")
			result, err := f.svc.CompleteSession(ctx, CompleteSessionInput{
				StoreID:         f.store.ID,
				SessionID:       sessionID,
				PaymentIntentID: "pi_" + sessionID,
				AmountTotal:     12000,
				Currency:        "usd",
				Lines:           lines,
			})
			require.NoError(t, err)
			assert.True(t, result.Created)
			assert.False(t, result.Transitioned)
			assert.True(t, result.PaymentCreated)
			assert.Equal(t, enums.OrderStatusCancelled, result.Order.Status)
			assert.Equal(t, int64(12000), result.Order.TotalCents)

			var payment models.Payment
			require.NoError(t, f.conn.First(&payment, "order_id = ?", result.Order.ID).Error)
			assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
			assert.Equal(t, int64(12000), payment.AmountCents)
		})
	}
	assert.Equal(t, int64(50000), f.stockOf(t, mug.ID))
	assert.Empty(t, f.outboxEvents(t))
}

func TestCreatePendingTxRejectsOverflowingTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vault := f.product(t, "Vault", 1_000_000_000_000_000_000, nil)

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.CreatePendingTx(ctx, tx, PendingOrderInput{
			StoreID:   f.store.ID,
			SessionID: "cs_live_overflow",
			Items:     []models.OrderItem{{ProductID: vault.ID, Quantity: 10, PriceCents: vault.PriceCents}},
		})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.EqualValues(t, 0, f.count(t, &models.Order{}))
}

func TestCreatePendingTxConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	poster := f.product(t, "Poster", 800, int64Ptr(1))

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.CreatePendingTx(ctx, tx, PendingOrderInput{
			StoreID:   f.store.ID,
			SessionID: "cs_race",
			Items:     []models.OrderItem{{ProductID: poster.ID, Quantity: 2, PriceCents: 800}},
		})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.EqualValues(t, 0, f.count(t, &models.Order{}))
	assert.EqualValues(t, 0, f.count(t, &models.OrderItem{}))
	assert.Equal(t, int64(1), f.stockOf(t, poster.ID))
}

func TestExpireSessionRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	f.openSession(t, "cs_expire", []models.OrderItem{{ProductID: mug.ID, Quantity: 3, PriceCents: 1200}})
	assert.Equal(t, int64(2), f.stockOf(t, mug.ID))

	released, err := f.svc.ExpireSession(ctx, f.store.ID, "cs_expire")
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, int64(5), f.stockOf(t, mug.ID))

	released, err = f.svc.ExpireSession(ctx, f.store.ID, "cs_expire")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, int64(5), f.stockOf(t, mug.ID))

	events := f.outboxEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOrderCancelled, events[0].EventType)

	released, err = f.svc.ExpireSession(ctx, f.store.ID, "cs_never_seen")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestConfirmPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	order := f.openSession(t, "cs_confirm", []models.OrderItem{{ProductID: mug.ID, Quantity: 1, PriceCents: 1200}})

	_, err := f.svc.Confirm(ctx, f.store.ID, "cs_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Confirm(ctx, f.store.ID, " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.sessions.err = errors.New("stripe down")
	_, err = f.svc.Confirm(ctx, f.store.ID, "cs_confirm")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	f.sessions.err = nil
	f.sessions.session = &stripe.CheckoutSession{ID: "cs_confirm", PaymentStatus: "unpaid"}
	res, err := f.svc.Confirm(ctx, f.store.ID, "cs_confirm")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, enums.OrderStatusPending, res.Status)
	assert.Equal(t, order.ID, res.OrderID)

	f.sessions.session = &stripe.CheckoutSession{ID: "cs_confirm", PaymentStatus: stripe.PaymentStatusPaid, PaymentIntentID: "pi_9", AmountTotal: 1200, Currency: "usd"}
	res, err = f.svc.Confirm(ctx, f.store.ID, "cs_confirm")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, enums.OrderStatusPaid, res.Status)

	calls := f.sessions.calls
	res, err = f.svc.Confirm(ctx, f.store.ID, "cs_confirm")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, calls, f.sessions.calls)
	assert.Equal(t, int64(4), f.stockOf(t, mug.ID))
	assert.EqualValues(t, 1, f.count(t, &models.Payment{}))
}

func TestAdminUpdateFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, int64Ptr(5))
	paid := f.openSession(t, "cs_paid", []models.OrderItem{{ProductID: mug.ID, Quantity: 1, PriceCents: 1200}})
	_, err := f.svc.CompleteSession(ctx, CompleteSessionInput{StoreID: f.store.ID, SessionID: "cs_paid"})
	require.NoError(t, err)

	shipped := enums.OrderStatusShipped
	email := " new@example.com "
	dto, err := f.svc.Update(ctx, f.store.ID, paid.ID, UpdateOrderInput{Status: &shipped, CustomerEmail: &email})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, dto.Status)
	assert.Equal(t, "new@example.com", dto.CustomerEmail)
	assert.Equal(t, "Mug", dto.Items[0].ProductTitle)

	pending := enums.OrderStatusPending
	_, err = f.svc.Update(ctx, f.store.ID, paid.ID, UpdateOrderInput{Status: &pending})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	bogus := enums.OrderStatus("lost")
	_, err = f.svc.Update(ctx, f.store.ID, paid.ID, UpdateOrderInput{Status: &bogus})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	open := f.openSession(t, "cs_open", []models.OrderItem{{ProductID: mug.ID, Quantity: 2, PriceCents: 1200}})
	assert.Equal(t, int64(2), f.stockOf(t, mug.ID))
	cancelled := enums.OrderStatusCancelled
	dto, err = f.svc.Update(ctx, f.store.ID, open.ID, UpdateOrderInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, dto.Status)
	assert.Equal(t, int64(4), f.stockOf(t, mug.ID))

	_, err = f.svc.Update(ctx, uuid.New(), open.ID, UpdateOrderInput{Status: &cancelled})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdminListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug := f.product(t, "Mug", 1200, nil)
	first := f.openSession(t, "cs_a", []models.OrderItem{{ProductID: mug.ID, Quantity: 1, PriceCents: 1200}})
	f.openSession(t, "cs_b", []models.OrderItem{{ProductID: mug.ID, Quantity: 3, PriceCents: 1200}})
	_, err := f.svc.CompleteSession(ctx, CompleteSessionInput{StoreID: f.store.ID, SessionID: "cs_a"})
	require.NoError(t, err)

	rows, total, err := f.svc.List(ctx, f.store.ID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mug", rows[0].Items[0].ProductTitle)

	rows, _, err = f.svc.List(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, f.svc.Delete(ctx, f.store.ID, first.ID))
	_, err = f.svc.Get(ctx, f.store.ID, first.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.EqualValues(t, 0, f.count(t, &models.Payment{}))
	assert.EqualValues(t, 1, f.count(t, &models.OrderItem{}))

	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, f.store.ID, first.ID), pkgerrors.CodeNotFound))
}
