package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]models.Payment, int64, error)
	UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error
	OrderBelongsToStore(ctx context.Context, storeID, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if payment == nil {
		return fmt.Errorf("payment is required")
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

// CreateIfAbsent inserts payment unless its order already has one. The
// boolean reports whether this call inserted the row.
func (r *repository) CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment == nil {
		return false, fmt.Errorf("payment is required")
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND id = ?", storeID, id).
		First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) List(ctx context.Context, storeID uuid.UUID, page pagination.Params) ([]models.Payment, int64, error) {
	page = page.Normalize()
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).Where("store_id = ?", storeID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
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

func (r *repository) UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
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

func (r *repository) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("store_id = ? AND id = ?", storeID, id).Delete(&models.Payment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeleteByOrderID(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.Payment{}).Error
}

func (r *repository) OrderBelongsToStore(ctx context.Context, storeID, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("store_id = ? AND id = ?", storeID, orderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
