package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type storeRepository interface {
	Create(ctx context.Context, store *models.Store) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindBySlug(ctx context.Context, slug string) (*models.Store, error)
	List(ctx context.Context, page pagination.Params) ([]models.Store, int64, error)
	Update(ctx context.Context, store *models.Store) error
}

// Service exposes store resolution and administration.
type Service interface {
	ResolveBySlug(ctx context.Context, slug string) (*StoreDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error)
	List(ctx context.Context, page pagination.Params) ([]StoreDTO, int64, error)
	Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*StoreDTO, error)
}

type service struct {
	repo storeRepository
}

// NewService builds a store service with the provided repository.
func NewService(repo storeRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveBySlug reads the store on every call. Unknown and inactive stores
// are both reported as not found.
func (s *service) ResolveBySlug(ctx context.Context, slug string) (*StoreDTO, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	store, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if store.Status != enums.StoreStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return FromModel(store), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(store), nil
}

func (s *service) List(ctx context.Context, page pagination.Params) ([]StoreDTO, int64, error) {
	rows, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stores")
	}
	out := make([]StoreDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, total, nil
}

func (s *service) Create(ctx context.Context, input CreateStoreInput) (*StoreDTO, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !ValidSlug(slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lower-case letters, digits and dashes")
	}

	status := enums.StoreStatusActive
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid store status")
		}
		status = *input.Status
	}

	theme, err := types.MergeThemePatch(types.DefaultThemeConfig(), input.ThemeConfig)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid themeConfig")
	}

	store := &models.Store{
		Slug:        slug,
		Name:        strings.TrimSpace(input.Name),
		Status:      status,
		Currency:    normalizeCurrency(input.Currency),
		ThemeConfig: theme,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create store")
	}
	return FromModel(store), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateStoreInput) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}

	if input.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*input.Slug))
		if !ValidSlug(slug) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lower-case letters, digits and dashes")
		}
		store.Slug = slug
	}
	if input.Name != nil {
		store.Name = strings.TrimSpace(*input.Name)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid store status")
		}
		store.Status = *input.Status
	}
	if input.Currency != nil {
		store.Currency = normalizeCurrency(*input.Currency)
	}
	if len(input.ThemeConfig) > 0 {
		merged, err := types.MergeThemePatch(store.ThemeConfig, input.ThemeConfig)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid themeConfig")
		}
		store.ThemeConfig = merged
	}

	if err := s.repo.Update(ctx, store); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update store")
	}
	return FromModel(store), nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load store")
}
