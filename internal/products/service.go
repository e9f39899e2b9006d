package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

type productRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, storeID, id uuid.UUID) (*models.Product, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, activeOnly bool) ([]models.Product, error)
	FindActiveByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
	UpdateFields(ctx context.Context, storeID, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
}

// Service exposes the storefront catalog and product administration.
type Service interface {
	ListActive(ctx context.Context, storeID uuid.UUID) ([]ProductDTO, error)
	GetActive(ctx context.Context, storeID uuid.UUID, idOrSlug string) (*ProductDTO, error)
	FindActiveByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)

	List(ctx context.Context, storeID uuid.UUID) ([]ProductDTO, error)
	Get(ctx context.Context, storeID, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, storeID uuid.UUID, currency string, input CreateProductInput) (*ProductDTO, error)
	Update(ctx context.Context, storeID, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	Delete(ctx context.Context, storeID, id uuid.UUID) error
}

type service struct {
	repo productRepository
}

// NewService builds the product service.
func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context, storeID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListByStore(ctx, storeID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return FromModels(rows), nil
}

// GetActive resolves idOrSlug as a product id first and otherwise matches it
// against the derived slug of the store's active products.
func (s *service) GetActive(ctx context.Context, storeID uuid.UUID, idOrSlug string) (*ProductDTO, error) {
	key := strings.TrimSpace(idOrSlug)
	if id, err := uuid.Parse(key); err == nil {
		product, err := s.repo.FindByID(ctx, storeID, id)
		if err != nil {
			return nil, mapLookupError(err)
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return FromModel(product), nil
	}

	slug := DeriveSlug(key)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	rows, err := s.repo.ListByStore(ctx, storeID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	for i := range rows {
		if DeriveSlug(rows[i].Title) == slug {
			return FromModel(&rows[i]), nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (s *service) FindActiveByIDs(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	rows, err := s.repo.FindActiveByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	return rows, nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID) ([]ProductDTO, error) {
	rows, err := s.repo.ListByStore(ctx, storeID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return FromModels(rows), nil
}

func (s *service) Get(ctx context.Context, storeID, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, storeID, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(product), nil
}

// Create adds a product priced in the store currency unless the input names one.
func (s *service) Create(ctx context.Context, storeID uuid.UUID, currency string, input CreateProductInput) (*ProductDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "priceCents must not be negative")
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if strings.TrimSpace(input.Currency) != "" {
		currency = input.Currency
	}

	product := &models.Product{
		StoreID:     storeID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		PriceCents:  input.PriceCents,
		Currency:    money.NormalizeCurrency(currency),
		ImageURL:    trimmedOrNil(input.ImageURL),
		Stock:       input.Stock,
		Active:      input.Active == nil || *input.Active,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return FromModel(product), nil
}

// Update writes only the fields present in input.
func (s *service) Update(ctx context.Context, storeID, id uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	fields, err := updateFields(input)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, storeID, id, fields); err != nil {
			return nil, mapLookupError(err)
		}
	}
	return s.Get(ctx, storeID, id)
}

func (s *service) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, storeID, id); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func updateFields(input UpdateProductInput) (map[string]any, error) {
	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "priceCents must not be negative")
		}
		fields["price_cents"] = *input.PriceCents
	}
	if input.Currency != nil {
		fields["currency"] = money.NormalizeCurrency(*input.Currency)
	}
	if input.ImageURL.Valid {
		fields["image_url"] = trimmedOrNil(input.ImageURL.Value)
	}
	if input.Stock.Valid {
		if input.Stock.Value != nil && *input.Stock.Value < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		fields["stock"] = input.Stock.Value
	}
	if input.Active != nil {
		fields["active"] = *input.Active
	}
	return fields, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
}
