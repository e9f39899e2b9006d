package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const (
	// Hosted sessions expire after 24h at most.
	defaultStaleCheckoutAfter = 25 * time.Hour
	defaultStaleCheckoutBatch = 100
)

type pendingOrderReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type sessionReader interface {
	RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

type sessionSettler interface {
	CompleteSession(ctx context.Context, input orders.CompleteSessionInput) (*orders.CompletionResult, error)
	ExpireSession(ctx context.Context, storeID uuid.UUID, sessionID string) (bool, error)
}

type StaleCheckoutJobParams struct {
	Logger   *logger.Logger
	Orders   pendingOrderReader
	Sessions sessionReader
	Settler  sessionSettler
	After    time.Duration
	Batch    int
}

// NewStaleCheckoutJob builds the job that settles live-mode pending orders
// whose checkout webhooks never arrived. Each old pending order is matched
// against its hosted session: paid sessions complete the order, expired ones
// cancel it and release the reserved stock, open ones are left alone.
func NewStaleCheckoutJob(params StaleCheckoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("order settler required")
	}
	after := params.After
	if after <= 0 {
		after = defaultStaleCheckoutAfter
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultStaleCheckoutBatch
	}
	return &staleCheckoutJob{
		logg:     params.Logger,
		orders:   params.Orders,
		sessions: params.Sessions,
		settler:  params.Settler,
		after:    after,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type staleCheckoutJob struct {
	logg     *logger.Logger
	orders   pendingOrderReader
	sessions sessionReader
	settler  sessionSettler
	after    time.Duration
	batch    int
	now      func() time.Time
}

type staleCheckoutSummary struct {
	scanned   int
	completed int
	expired   int
	open      int
	failed    int
}

func (j *staleCheckoutJob) Name() string { return "stale-checkout" }

func (j *staleCheckoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	pending, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}

	var (
		summary staleCheckoutSummary
		errs    error
	)
	for i := range pending {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		summary.scanned++
		if err := j.settle(ctx, &pending[i], &summary); err != nil {
			summary.failed++
			errs = multierr.Append(errs, err)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"scanned":   summary.scanned,
		"completed": summary.completed,
		"expired":   summary.expired,
		"open":      summary.open,
		"failed":    summary.failed,
	})
	j.logg.Info(logCtx, "stale checkout reconciliation complete")
	return errs
}

func (j *staleCheckoutJob) settle(ctx context.Context, order *models.Order, summary *staleCheckoutSummary) error {
	if order.CheckoutSessionID == nil || *order.CheckoutSessionID == "" {
		return nil
	}
	sessionID := *order.CheckoutSessionID
	session, err := j.sessions.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}

	switch {
	case session.Paid():
		result, err := j.settler.CompleteSession(ctx, orders.CompleteSessionInput{
			StoreID:         order.StoreID,
			SessionID:       sessionID,
			PaymentIntentID: session.PaymentIntentID,
			AmountTotal:     session.AmountTotal,
			Currency:        session.Currency,
			CustomerEmail:   session.CustomerEmail,
		})
		if err != nil {
			return fmt.Errorf("complete order %s: %w", order.ID, err)
		}
		if result.Transitioned {
			summary.completed++
		}
	case session.Expired():
		if _, err := j.settler.ExpireSession(ctx, order.StoreID, sessionID); err != nil {
			return fmt.Errorf("expire order %s: %w", order.ID, err)
		}
		summary.expired++
	default:
		summary.open++
	}
	return nil
}
