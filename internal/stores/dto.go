package stores

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// StoreDTO is the store as returned by the storefront and admin APIs.
type StoreDTO struct {
	ID          uuid.UUID         `json:"id"`
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	Status      enums.StoreStatus `json:"status"`
	Currency    string            `json:"currency"`
	ThemeConfig types.ThemeConfig `json:"themeConfig"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// FromModel maps the persisted store into a DTO, filling display defaults.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:          m.ID,
		Slug:        m.Slug,
		Name:        DisplayName(m.Name, m.Slug),
		Status:      m.Status,
		Currency:    normalizeCurrency(m.Currency),
		ThemeConfig: m.ThemeConfig,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CreateStoreInput captures the admin payload for a new store.
type CreateStoreInput struct {
	Slug        string             `json:"slug" validate:"required,max=64"`
	Name        string             `json:"name" validate:"omitempty,max=120"`
	Status      *enums.StoreStatus `json:"status,omitempty"`
	Currency    string             `json:"currency" validate:"omitempty,len=3,alpha"`
	ThemeConfig json.RawMessage    `json:"themeConfig,omitempty"`
}

// UpdateStoreInput captures the allowed store fields for mutation. Nil
// fields are left untouched; ThemeConfig is a partial document deep-merged
// into the stored configuration.
type UpdateStoreInput struct {
	Slug        *string            `json:"slug,omitempty" validate:"omitempty,max=64"`
	Name        *string            `json:"name,omitempty" validate:"omitempty,max=120"`
	Status      *enums.StoreStatus `json:"status,omitempty"`
	Currency    *string            `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	ThemeConfig json.RawMessage    `json:"themeConfig,omitempty"`
}
