package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Repository defines the persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error)
	FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Order, error)
	FindBySession(ctx context.Context, storeID uuid.UUID, sessionID string) (*models.Order, error)
	List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]models.Order, int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID *string) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	ItemTitles(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// EventEmitter queues order lifecycle events inside the caller's transaction.
type EventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SessionRetriever reads hosted checkout sessions from the payment provider.
type SessionRetriever interface {
	RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}
