package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository handles tenant-scoped product persistence.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to product operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Base.WithTx(tx)}
}

// Create persists a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}
	return r.DB(ctx).Create(product).Error
}

// FindByID loads a product owned by storeID.
func (r *Repository) FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).
		Where("store_id = ? AND id = ?", storeID, id).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListByStore returns the store's products, newest first. activeOnly limits
// the result to listed products.
func (r *Repository) ListByStore(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]models.Product, error) {
	query := r.DB(ctx).Where("store_id = ?", storeID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.Product
	if err := query.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActiveByIDs batch-loads active products of storeID. Ids that do not
// match are simply absent from the result.
func (r *Repository) FindActiveByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).
		Where("store_id = ? AND active = ? AND id IN ?", storeID, true, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByIDs loads products of storeID regardless of active flag.
func (r *Repository) FindByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).
		Where("store_id = ? AND id IN ?", storeID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateFields writes exactly the given columns. It returns
// gorm.ErrRecordNotFound when no product matched.
func (r *Repository) UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.DB(ctx).
		Model(&models.Product{}).
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

// Delete removes a product of storeID. Order items keep their snapshot.
func (r *Repository) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	res := r.DB(ctx).Where("store_id = ? AND id = ?", storeID, id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
