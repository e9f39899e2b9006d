// Package reservation moves product stock inside a caller-owned transaction.
package reservation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Request decrements (Reserve) or restores (Release) Quantity units of ProductID.
type Request struct {
	ProductID uuid.UUID
	Quantity  int64
}

// FromItems converts order items into reservation requests.
func FromItems(items []models.OrderItem) []Request {
	reqs := make([]Request, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, Request{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return reqs
}

// Reserve decrements tracked stock for every request. Each decrement is
// conditional on enough stock remaining; a request that matches no row
// returns CONFLICT and the caller must roll back its transaction. Products
// with NULL stock are untracked and always succeed.
func Reserve(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, reqs []Request) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	for _, req := range reqs {
		if req.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND store_id = ?", req.ProductID, storeID).
			Where("stock IS NULL OR stock >= ?", req.Quantity).
			Update("stock", gorm.Expr("stock - ?", req.Quantity))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "product %s is out of stock", req.ProductID).
				WithDetails(map[string]any{"productId": req.ProductID, "requested": req.Quantity})
		}
	}
	return nil
}

// Release returns reserved units to tracked stock. Deleted or untracked
// products are skipped.
func Release(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, reqs []Request) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	for _, req := range reqs {
		if req.Quantity < 1 {
			continue
		}
		err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND store_id = ? AND stock IS NOT NULL", req.ProductID, storeID).
			Update("stock", gorm.Expr("stock + ?", req.Quantity)).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}
	return nil
}
