package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const paymentStatusNoPaymentRequired = "no_payment_required"

type orderSessions interface {
	CompleteSession(ctx context.Context, input orders.CompleteSessionInput) (*orders.CompletionResult, error)
	ExpireSession(ctx context.Context, storeID uuid.UUID, sessionID string) (bool, error)
}

type ServiceParams struct {
	Orders  orderSessions
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

// Service applies verified Stripe checkout events to orders.
type Service struct {
	orders  orderSessions
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		orders:  params.Orders,
		metrics: params.Metrics,
		logg:    logg,
	}, nil
}

// HandleEvent processes one verified event. A nil error acknowledges the
// delivery; events that can never succeed are logged and acknowledged so
// Stripe stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		outcome = metrics.OutcomeError
	}
	s.metrics.IncWebhook(string(event.Type), outcome)
	return err
}

// RecordDuplicate counts a redelivered event that was skipped.
func (s *Service) RecordDuplicate(event *stripe.Event) {
	if event == nil {
		return
	}
	s.metrics.IncWebhook(string(event.Type), metrics.OutcomeDuplicate)
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, ok := s.decodeSession(ctx, event)
		if !ok {
			return metrics.OutcomeRejected, nil
		}
		return s.completeSession(ctx, session)
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, ok := s.decodeSession(ctx, event)
		if !ok {
			return metrics.OutcomeRejected, nil
		}
		return s.expireSession(ctx, session)
	default:
		return metrics.OutcomeIgnored, nil
	}
}

// decodeSession reads the checkout session out of a verified event. A payload
// that does not decode is logged; redelivery cannot repair it.
func (s *Service) decodeSession(ctx context.Context, event *stripe.Event) (stripeclient.CheckoutSession, bool) {
	session, err := decodeSession(event)
	if err != nil {
		s.logg.Error(ctx, "stripe event carries no usable checkout session", err)
		return stripeclient.CheckoutSession{}, false
	}
	return session, true
}

func (s *Service) completeSession(ctx context.Context, session stripeclient.CheckoutSession) (string, error) {
	ctx = s.logg.WithField(ctx, "checkout_session_id", session.ID)
	if session.PaymentStatus != stripeclient.PaymentStatusPaid && session.PaymentStatus != paymentStatusNoPaymentRequired {
		s.logg.Info(s.logg.WithField(ctx, "payment_status", session.PaymentStatus), "checkout session not paid yet")
		return metrics.OutcomeIgnored, nil
	}
	storeID, ok := s.storeID(ctx, session)
	if !ok {
		return metrics.OutcomeIgnored, nil
	}

	result, err := s.orders.CompleteSession(ctx, orders.CompleteSessionInput{
		StoreID:         storeID,
		SessionID:       session.ID,
		PaymentIntentID: session.PaymentIntentID,
		AmountTotal:     session.AmountTotal,
		Currency:        session.Currency,
		CustomerEmail:   session.CustomerEmail,
		Lines:           s.metadataLines(ctx, session),
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) || pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			s.logg.Error(ctx, "checkout session cannot be reconciled", err)
			return metrics.OutcomeRejected, nil
		}
		return "", err
	}
	if !result.Transitioned && !result.Created {
		return metrics.OutcomeDuplicate, nil
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": result.Order.ID.String(),
		"status":   result.Order.Status.String(),
		"created":  result.Created,
	}), "checkout session completed")
	return metrics.OutcomeSuccess, nil
}

func (s *Service) expireSession(ctx context.Context, session stripeclient.CheckoutSession) (string, error) {
	ctx = s.logg.WithField(ctx, "checkout_session_id", session.ID)
	storeID, ok := s.storeID(ctx, session)
	if !ok {
		return metrics.OutcomeIgnored, nil
	}
	released, err := s.orders.ExpireSession(ctx, storeID, session.ID)
	if err != nil {
		return "", err
	}
	if !released {
		return metrics.OutcomeDuplicate, nil
	}
	s.logg.Info(ctx, "checkout session expired; stock released")
	return metrics.OutcomeSuccess, nil
}

func (s *Service) storeID(ctx context.Context, session stripeclient.CheckoutSession) (uuid.UUID, bool) {
	raw := strings.TrimSpace(session.Metadata[stripeclient.MetadataStoreID])
	if raw == "" {
		s.logg.Warn(ctx, "checkout session has no store_id metadata")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "store_id", raw), "checkout session has invalid store_id metadata", err)
		return uuid.Nil, false
	}
	return id, true
}

// metadataLines recovers the cart from session metadata. Unreadable entries
// are dropped; the pending order is the primary record.
func (s *Service) metadataLines(ctx context.Context, session stripeclient.CheckoutSession) []helpers.Line {
	items, err := stripeclient.DecodeMetadataItems(session.Metadata[stripeclient.MetadataItems])
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout session items metadata unreadable")
		return nil
	}
	lines := make([]helpers.Line, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			continue
		}
		lines = append(lines, helpers.Line{ProductID: id, Quantity: item.Quantity})
	}
	return lines
}

func decodeSession(event *stripe.Event) (stripeclient.CheckoutSession, error) {
	if event.Data == nil {
		return stripeclient.CheckoutSession{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return stripeclient.CheckoutSession{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.ID == "" {
		return stripeclient.CheckoutSession{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return stripeclient.FromStripeSession(&session), nil
}
