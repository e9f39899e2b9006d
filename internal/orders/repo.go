package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and then its items. Callers that need atomicity
// pass a transaction through WithTx.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	return r.createItems(ctx, order)
}

// CreateIfAbsent inserts the order unless another row already owns its
// checkout session id. Items are only written when this call inserted the order.
func (r *repository) CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error) {
	if order == nil {
		return false, fmt.Errorf("order is required")
	}
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "checkout_session_id"}}, DoNothing: true}).
		Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	return true, r.createItems(ctx, order)
}

func (r *repository) createItems(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(&order.Items).Error
}

func (r *repository) FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItemsOrder).
		Where("store_id = ? AND id = ?", storeID, id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySession(ctx context.Context, storeID uuid.UUID, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItemsOrder).
		Where("store_id = ? AND checkout_session_id = ?", storeID, sessionID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	page = page.Normalize()
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("store_id = ?", storeID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items", orderItemsOrder).
		Where("store_id = ?", storeID).
		Order("created_at DESC").
		Order("id").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListPendingBefore returns live-mode orders still pending that were opened
// before cutoff, oldest first, across all stores.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND checkout_mode = ? AND created_at < ? AND checkout_session_id IS NOT NULL",
			enums.OrderStatusPending, enums.CheckoutModeLive, cutoff).
		Order("created_at ASC").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPaid moves a pending order to paid. The boolean reports whether this
// call performed the transition.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID *string) (bool, error) {
	fields := map[string]any{"status": enums.OrderStatusPaid}
	if paymentIntentID != nil && *paymentIntentID != "" {
		fields["payment_intent_id"] = *paymentIntentID
	}
	return r.transitionFromPending(ctx, id, fields)
}

// MarkCancelled moves a pending order to cancelled.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.transitionFromPending(ctx, id, map[string]any{"status": enums.OrderStatusCancelled})
}

func (r *repository) transitionFromPending(ctx context.Context, id uuid.UUID, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("store_id = ? AND id = ?", storeID, id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the order with its payment and items. It should run inside
// a transaction.
func (r *repository) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Order{}).Where("store_id = ? AND id = ?", storeID, id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	if err := db.Where("order_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return db.Where("store_id = ? AND id = ?", storeID, id).Delete(&models.Order{}).Error
}

// ItemTitles joins the items of the given orders to their products and
// returns product titles keyed by product id. Deleted products are absent.
func (r *repository) ItemTitles(ctx context.Context, storeID uuid.UUID, orderIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ProductID uuid.UUID
		Title     string
	}
	if err := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.product_id AS product_id, products.title AS title").
		Joins("JOIN products ON products.id = order_items.product_id AND products.store_id = ?", storeID).
		Where("order_items.order_id IN ?", orderIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row.Title
	}
	return out, nil
}

func orderItemsOrder(db *gorm.DB) *gorm.DB {
	return db.Order("created_at").Order("id")
}
