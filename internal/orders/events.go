package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// cancelReasonSessionClosed covers both an expired session and a failed
// asynchronous payment.
const cancelReasonSessionClosed = "checkout_session_closed"

func orderPaidEvent(order *models.Order, now time.Time) outbox.DomainEvent {
	data := payloads.OrderPaidEvent{
		OrderID:       order.ID,
		StoreID:       order.StoreID,
		Status:        order.Status,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		CustomerEmail: order.CustomerEmail,
		CheckoutMode:  order.CheckoutMode,
		Items:         make([]payloads.OrderLine, 0, len(order.Items)),
	}
	if order.CheckoutSessionID != nil {
		data.CheckoutSessionID = *order.CheckoutSessionID
	}
	if order.PaymentIntentID != nil {
		data.PaymentIntentID = *order.PaymentIntentID
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, payloads.OrderLine{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceCents: item.PriceCents,
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          data,
		OccurredAt:    now,
	}
}

func orderCancelledEvent(order *models.Order, now time.Time) outbox.DomainEvent {
	data := payloads.OrderCancelledEvent{
		OrderID:       order.ID,
		StoreID:       order.StoreID,
		Reason:        cancelReasonSessionClosed,
		StockReleased: true,
	}
	if order.CheckoutSessionID != nil {
		data.CheckoutSessionID = *order.CheckoutSessionID
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          data,
		OccurredAt:    now,
	}
}

// emit queues event in tx. Without an emitter it is a no-op.
func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
	}
	return nil
}
