package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/checkout/reservation"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the order lifecycle: pending orders opened at checkout,
// idempotent completion of paid sessions, expiry, and admin operations.
type Service interface {
	CreatePendingTx(ctx context.Context, tx *gorm.DB, input PendingOrderInput) (*models.Order, error)
	CompleteSession(ctx context.Context, input CompleteSessionInput) (*CompletionResult, error)
	CompleteSessionTx(ctx context.Context, tx *gorm.DB, input CompleteSessionInput) (*CompletionResult, error)
	ExpireSession(ctx context.Context, storeID uuid.UUID, sessionID string) (bool, error)
	Confirm(ctx context.Context, storeID uuid.UUID, sessionID string) (*ConfirmResult, error)
	FindBySession(ctx context.Context, storeID uuid.UUID, sessionID string) (*OrderDTO, error)

	List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]OrderDTO, int64, error)
	Get(ctx context.Context, storeID, id uuid.UUID) (*OrderDTO, error)
	Update(ctx context.Context, storeID, id uuid.UUID, input UpdateOrderInput) (*OrderDTO, error)
	Delete(ctx context.Context, storeID, id uuid.UUID) error
}

// ServiceParams wires the order service. Sessions, Events and Logger are optional.
type ServiceParams struct {
	Repo     Repository
	Payments payments.Repository
	Tx       txRunner
	Sessions SessionRetriever
	Events   EventEmitter
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	payments payments.Repository
	tx       txRunner
	sessions SessionRetriever
	events   EventEmitter
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates dependencies and returns the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		payments: params.Payments,
		tx:       params.Tx,
		sessions: params.Sessions,
		events:   params.Events,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// CreatePendingTx records a pending order for a freshly opened checkout
// session and reserves its stock. A reservation conflict is returned as is
// so the caller rolls back the whole transaction.
func (s *service) CreatePendingTx(ctx context.Context, tx *gorm.DB, input PendingOrderInput) (*models.Order, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if input.StoreID == uuid.Nil || sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store and checkout session are required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	mode := input.Mode
	if !mode.IsValid() {
		mode = enums.CheckoutModeLive
	}

	items := append([]models.OrderItem(nil), input.Items...)
	total, err := helpers.ComputeTotal(items)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		StoreID:           input.StoreID,
		CustomerEmail:     strings.TrimSpace(input.CustomerEmail),
		Status:            enums.OrderStatusPending,
		TotalCents:        total,
		Currency:          money.NormalizeCurrency(input.Currency),
		ShippingAddress:   input.ShippingAddress,
		CheckoutSessionID: &sessionID,
		CheckoutMode:      mode,
		Items:             items,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "idx_orders_checkout_session") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "checkout session already has an order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	if err := reservation.Reserve(ctx, tx, input.StoreID, reservation.FromItems(order.Items)); err != nil {
		return nil, err
	}
	return order, nil
}

// CompleteSession marks the order of a paid checkout session as paid and
// records its payment. It is safe to call any number of times for the same
// session; only the call that performs the pending to paid transition
// queues the order.paid event.
func (s *service) CompleteSession(ctx context.Context, input CompleteSessionInput) (*CompletionResult, error) {
	var result *CompletionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.CompleteSessionTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CompleteSessionTx is CompleteSession inside a caller-owned transaction. The
// order.paid event commits or rolls back with tx.
func (s *service) CompleteSessionTx(ctx context.Context, tx *gorm.DB, input CompleteSessionInput) (*CompletionResult, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.StoreID == uuid.Nil || input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store and checkout session are required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"store_id":            input.StoreID.String(),
		"checkout_session_id": input.SessionID,
	})
	repo := s.repo.WithTx(tx)
	result := &CompletionResult{}

	order, err := repo.FindBySession(ctx, input.StoreID, input.SessionID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if len(input.Lines) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for checkout session")
		}
		created, err := s.createFromSession(ctx, tx, input)
		if err != nil {
			return nil, err
		}
		result.Created = created
		if order, err = repo.FindBySession(ctx, input.StoreID, input.SessionID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	if order.Status == enums.OrderStatusPending {
		transitioned, err := repo.MarkPaid(ctx, order.ID, nonEmpty(input.PaymentIntentID))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		result.Transitioned = transitioned
	}

	amount := order.TotalCents
	if input.AmountTotal > 0 {
		amount = input.AmountTotal
		if amount != order.TotalCents {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_total_cents":   order.TotalCents,
				"session_total_cents": amount,
			}), "checkout session total differs from order total")
		}
	}
	currency := order.Currency
	if strings.TrimSpace(input.Currency) != "" {
		currency = money.NormalizeCurrency(input.Currency)
	}
	paymentCreated, err := s.payments.WithTx(tx).CreateIfAbsent(ctx, &models.Payment{
		StoreID:         order.StoreID,
		OrderID:         order.ID,
		AmountCents:     amount,
		Currency:        currency,
		Status:          enums.PaymentStatusSucceeded,
		PaymentIntentID: nonEmpty(input.PaymentIntentID),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
	}
	result.PaymentCreated = paymentCreated

	if result.Order, err = repo.FindByID(ctx, order.StoreID, order.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	if result.Transitioned {
		if err := s.emit(ctx, tx, orderPaidEvent(result.Order, s.now())); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// createFromSession records an order for a paid session that has no pending
// order, pricing the metadata lines at current prices. When the lines are
// unusable or the products or their stock are gone, the order is kept as
// cancelled so the payment can be refunded.
func (s *service) createFromSession(ctx context.Context, tx *gorm.DB, input CompleteSessionInput) (bool, error) {
	lines, err := helpers.NormalizeLines(input.Lines)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return false, err
		}
		s.logg.Error(ctx, "paid session carries unusable line items", err)
		return s.createCancelledFromSession(ctx, tx, input, input.Currency, nil)
	}
	rows, err := products.NewRepository(tx).FindByIDs(ctx, input.StoreID, helpers.ProductIDs(lines))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	items, missing := helpers.PriceAvailable(rows, lines)

	currency := input.Currency
	if strings.TrimSpace(currency) == "" && len(rows) > 0 {
		currency = rows[0].Currency
	}
	total, err := helpers.ComputeTotal(items)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "lines", helpers.Describe(lines)), "paid session total cannot be priced", err)
		return s.createCancelledFromSession(ctx, tx, input, currency, items)
	}
	if len(missing) > 0 {
		s.logg.Error(s.logg.WithField(ctx, "missing_products", missing), "paid session references unknown products", nil)
		return s.createCancelledFromSession(ctx, tx, input, currency, items)
	}

	order := sessionOrder(input, currency, items, total)
	repo := s.repo.WithTx(tx)
	created, err := repo.CreateIfAbsent(ctx, order)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	if !created {
		return false, nil
	}

	if err := reserveAll(ctx, tx, input.StoreID, reservation.FromItems(items)); err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return false, err
		}
		s.logg.Error(s.logg.WithField(ctx, "lines", helpers.Describe(lines)), "paid session exceeds available stock", err)
		if _, err := repo.MarkCancelled(ctx, order.ID); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
	}
	return true, nil
}

// createCancelledFromSession records a cancelled order for a paid session
// that cannot be fulfilled. The total is what the customer was charged.
func (s *service) createCancelledFromSession(ctx context.Context, tx *gorm.DB, input CompleteSessionInput, currency string, items []models.OrderItem) (bool, error) {
	total := input.AmountTotal
	if total < 0 {
		total = 0
	}
	order := sessionOrder(input, currency, items, total)
	order.Status = enums.OrderStatusCancelled
	created, err := s.repo.WithTx(tx).CreateIfAbsent(ctx, order)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return created, nil
}

func sessionOrder(input CompleteSessionInput, currency string, items []models.OrderItem, total int64) *models.Order {
	sessionID := input.SessionID
	mode := input.Mode
	if !mode.IsValid() {
		mode = enums.CheckoutModeLive
	}
	return &models.Order{
		StoreID:           input.StoreID,
		CustomerEmail:     strings.TrimSpace(input.CustomerEmail),
		Status:            enums.OrderStatusPending,
		TotalCents:        total,
		Currency:          money.NormalizeCurrency(currency),
		CheckoutSessionID: &sessionID,
		CheckoutMode:      mode,
		Items:             items,
	}
}

// reserveAll reserves each request in turn and gives back what it already
// took when a later request conflicts.
func reserveAll(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, reqs []reservation.Request) error {
	for i, req := range reqs {
		if err := reservation.Reserve(ctx, tx, storeID, []reservation.Request{req}); err != nil {
			if relErr := reservation.Release(ctx, tx, storeID, reqs[:i]); relErr != nil {
				return relErr
			}
			return err
		}
	}
	return nil
}

// ExpireSession cancels the pending order of an expired checkout session and
// returns its reserved stock. Only the call that performs the transition
// releases stock; the boolean reports whether that happened.
func (s *service) ExpireSession(ctx context.Context, storeID uuid.UUID, sessionID string) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if storeID == uuid.Nil || sessionID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "store and checkout session are required")
	}
	var released bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindBySession(ctx, storeID, sessionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		transitioned, err := repo.MarkCancelled(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !transitioned {
			return nil
		}
		if err := reservation.Release(ctx, tx, storeID, reservation.FromItems(order.Items)); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, orderCancelledEvent(order, s.now())); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// Confirm reports whether the order behind a checkout session is paid,
// completing it when the payment provider says the session was paid.
func (s *service) Confirm(ctx context.Context, storeID uuid.UUID, sessionID string) (*ConfirmResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sessionId is required")
	}
	order, err := s.repo.FindBySession(ctx, storeID, sessionID)
	if err != nil {
		return nil, mapLookupError(err)
	}

	switch order.Status {
	case enums.OrderStatusPaid, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return &ConfirmResult{Success: true, OrderID: order.ID, Status: order.Status}, nil
	case enums.OrderStatusPending:
	default:
		return &ConfirmResult{Success: false, OrderID: order.ID, Status: order.Status}, nil
	}

	if order.CheckoutMode == enums.CheckoutModeTest || s.sessions == nil {
		return &ConfirmResult{Success: false, OrderID: order.ID, Status: order.Status}, nil
	}
	session, err := s.sessions.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	if !session.Paid() {
		return &ConfirmResult{Success: false, OrderID: order.ID, Status: order.Status}, nil
	}

	result, err := s.CompleteSession(ctx, CompleteSessionInput{
		StoreID:         storeID,
		SessionID:       sessionID,
		PaymentIntentID: session.PaymentIntentID,
		AmountTotal:     session.AmountTotal,
		Currency:        session.Currency,
		CustomerEmail:   session.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Success: result.Order.Status == enums.OrderStatusPaid,
		OrderID: result.Order.ID,
		Status:  result.Order.Status,
	}, nil
}

func (s *service) FindBySession(ctx context.Context, storeID uuid.UUID, sessionID string) (*OrderDTO, error) {
	order, err := s.repo.FindBySession(ctx, storeID, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, mapLookupError(err)
	}
	return s.withTitles(ctx, s.repo, order)
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]OrderDTO, int64, error) {
	rows, total, err := s.repo.List(ctx, storeID, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	titles, err := s.repo.ItemTitles(ctx, storeID, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product titles")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i], titles))
	}
	return out, total, nil
}

func (s *service) Get(ctx context.Context, storeID, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, storeID, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return s.withTitles(ctx, s.repo, order)
}

// Update applies an admin patch. Status changes must follow the order
// lifecycle; cancelling a pending order returns its stock.
func (s *service) Update(ctx context.Context, storeID, id uuid.UUID, input UpdateOrderInput) (*OrderDTO, error) {
	var dto *OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, storeID, id)
		if err != nil {
			return mapLookupError(err)
		}

		fields := map[string]any{}
		if input.CustomerEmail != nil {
			email := strings.TrimSpace(*input.CustomerEmail)
			if email == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "customerEmail must not be empty")
			}
			fields["customer_email"] = email
		}
		if input.ShippingAddress != nil {
			fields["shipping_address"] = input.ShippingAddress.Normalize()
		}
		if input.Status != nil {
			next := *input.Status
			if !next.IsValid() {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", next)
			}
			if !order.Status.CanTransitionTo(next) {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot move from %s to %s", order.Status, next)
			}
			if order.Status == enums.OrderStatusPending && next == enums.OrderStatusCancelled {
				transitioned, err := repo.MarkCancelled(ctx, order.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
				}
				if transitioned {
					if err := reservation.Release(ctx, tx, storeID, reservation.FromItems(order.Items)); err != nil {
						return err
					}
				}
			} else if next != order.Status {
				fields["status"] = next
			}
		}
		if err := repo.UpdateFields(ctx, storeID, id, fields); err != nil {
			return mapLookupError(err)
		}

		updated, err := repo.FindByID(ctx, storeID, id)
		if err != nil {
			return mapLookupError(err)
		}
		dto, err = s.withTitles(ctx, repo, updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// Delete removes an order with its items and payment. A pending order
// returns its reserved stock first.
func (s *service) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, storeID, id)
		if err != nil {
			return mapLookupError(err)
		}
		if order.Status == enums.OrderStatusPending {
			if err := reservation.Release(ctx, tx, storeID, reservation.FromItems(order.Items)); err != nil {
				return err
			}
		}
		if err := repo.Delete(ctx, storeID, id); err != nil {
			return mapLookupError(err)
		}
		return nil
	})
}

func (s *service) withTitles(ctx context.Context, repo Repository, order *models.Order) (*OrderDTO, error) {
	titles, err := repo.ItemTitles(ctx, order.StoreID, []uuid.UUID{order.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product titles")
	}
	return FromModel(order, titles), nil
}

func nonEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
