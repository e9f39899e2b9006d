package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Store represents a storefront tenant.
type Store struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Slug        string            `gorm:"column:slug;not null;uniqueIndex:idx_stores_slug"`
	Name        string            `gorm:"column:name;not null;default:''"`
	Status      enums.StoreStatus `gorm:"column:status;not null;default:'active'"`
	Currency    string            `gorm:"column:currency;not null;default:'usd'"`
	ThemeConfig types.ThemeConfig `gorm:"column:theme_config;type:text"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Store) TableName() string { return "stores" }

// BeforeCreate assigns a primary key when the caller did not.
func (s *Store) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
