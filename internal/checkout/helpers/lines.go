package helpers

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// MaxLineQuantity bounds a single cart line.
	MaxLineQuantity = 10000
	// MaxUnitPriceCents is the largest unit amount Stripe accepts for a line item.
	MaxUnitPriceCents = 99999999
)

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID uuid.UUID
	Quantity  int64
}

// NormalizeLines validates the requested lines and merges repeated products
// into one line, keeping first-seen order.
func NormalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "productId is required")
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for product %s must be at least 1", line.ProductID)
		}
		if line.Quantity > MaxLineQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for product %s exceeds %d", line.ProductID, MaxLineQuantity)
		}
		if pos, ok := index[line.ProductID]; ok {
			merged[pos].Quantity += line.Quantity
		} else {
			index[line.ProductID] = len(merged)
			merged = append(merged, line)
		}
	}
	for _, line := range merged {
		if line.Quantity > MaxLineQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for product %s exceeds %d", line.ProductID, MaxLineQuantity)
		}
	}
	return merged, nil
}

// ProductIDs returns the product ids referenced by lines.
func ProductIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// BuildOrderItems prices lines against products, snapshotting the current
// unit price. Unknown products and, when checkStock is set, lines exceeding
// tracked stock are validation errors.
func BuildOrderItems(products []models.Product, lines []Line, checkStock bool) ([]models.OrderItem, error) {
	byID := indexProducts(products)
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "product %s not found", line.ProductID).
				WithDetails(map[string]any{"productId": line.ProductID})
		}
		if checkStock && !product.HasStockFor(line.Quantity) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "insufficient stock for %s", product.Title).
				WithDetails(map[string]any{"productId": product.ID, "available": *product.Stock, "requested": line.Quantity})
		}
		items = append(items, models.OrderItem{
			ProductID:  product.ID,
			Quantity:   line.Quantity,
			PriceCents: product.PriceCents,
		})
	}
	if _, err := ComputeTotal(items); err != nil {
		return nil, err
	}
	return items, nil
}

// PriceAvailable prices the lines whose product still exists and reports
// the ids that could not be priced.
func PriceAvailable(products []models.Product, lines []Line) ([]models.OrderItem, []uuid.UUID) {
	byID := indexProducts(products)
	items := make([]models.OrderItem, 0, len(lines))
	var missing []uuid.UUID
	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			missing = append(missing, line.ProductID)
			continue
		}
		items = append(items, models.OrderItem{
			ProductID:  product.ID,
			Quantity:   line.Quantity,
			PriceCents: product.PriceCents,
		})
	}
	return items, missing
}

// ComputeTotal is the single definition of an order total:
// the sum of quantity times snapshotted unit price. A total that does not fit
// in int64 is a validation error.
func ComputeTotal(items []models.OrderItem) (int64, error) {
	var total int64
	for _, item := range items {
		if item.Quantity < 0 || item.PriceCents < 0 {
			return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "line for product %s has a negative amount", item.ProductID)
		}
		if item.Quantity != 0 && item.PriceCents > math.MaxInt64/item.Quantity {
			return 0, totalTooLarge(item.ProductID)
		}
		line := item.LineTotalCents()
		if total > math.MaxInt64-line {
			return 0, totalTooLarge(item.ProductID)
		}
		total += line
	}
	return total, nil
}

func totalTooLarge(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "order total exceeds the supported amount").
		WithDetails(map[string]any{"productId": productID})
}

func indexProducts(products []models.Product) map[uuid.UUID]models.Product {
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	return byID
}

// Describe renders lines for log fields.
func Describe(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, fmt.Sprintf("%s x%d", line.ProductID, line.Quantity))
	}
	return out
}
