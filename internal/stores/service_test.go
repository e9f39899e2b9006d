package stores

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.New(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestResolveBySlugBackfillsDisplayDefaults(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Store{Slug: "my-shop", Status: enums.StoreStatusActive}))

	store, err := svc.ResolveBySlug(ctx, "My-Shop")
	require.NoError(t, err)
	assert.Equal(t, "My Shop", store.Name)
	assert.Equal(t, "usd", store.Currency)
}

func TestResolveBySlugHidesInactiveAndUnknownStores(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &models.Store{Slug: "closed", Name: "Closed", Status: enums.StoreStatusInactive}))

	_, err := svc.ResolveBySlug(ctx, "closed")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.ResolveBySlug(ctx, "missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestResolveBySlugMigratesLegacyThemeSpelling(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	store := &models.Store{Slug: "legacy", Status: enums.StoreStatusActive}
	require.NoError(t, repo.Create(ctx, store))
	require.NoError(t, repo.DB(ctx).Exec(
		"UPDATE stores SET theme_config = ? WHERE id = ?",
		`{"style":{"primaryColor":"#ff0000"},"content":{"heroTitle":"Welcome"}}`, store.ID,
	).Error)

	resolved, err := svc.ResolveBySlug(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", resolved.ThemeConfig.Style.PrimaryColor)
	assert.Equal(t, "Welcome", resolved.ThemeConfig.Content.HeroTitle)
	assert.Equal(t, 1, resolved.ThemeConfig.Version)
}

func TestCreateRejectsDuplicateAndInvalidSlugs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateStoreInput{Slug: "plant-shop", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "eur", created.Currency)
	assert.Equal(t, enums.StoreStatusActive, created.Status)

	_, err = svc.Create(ctx, CreateStoreInput{Slug: "plant-shop"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, CreateStoreInput{Slug: "Bad Slug!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateMergesThemePatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateStoreInput{
		Slug:        "theme-shop",
		ThemeConfig: json.RawMessage(`{"style":{"primary_color":"#111","accent_color":"#222"},"content":{"tagline":"Hi"}}`),
	})
	require.NoError(t, err)

	name := "Theme Shop"
	updated, err := svc.Update(ctx, created.ID, UpdateStoreInput{
		Name:        &name,
		ThemeConfig: json.RawMessage(`{"style":{"accentColor":"#333"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Theme Shop", updated.Name)
	assert.Equal(t, "#111", updated.ThemeConfig.Style.PrimaryColor)
	assert.Equal(t, "#333", updated.ThemeConfig.Style.AccentColor)
	assert.Equal(t, "Hi", updated.ThemeConfig.Content.Tagline)

	reloaded, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.ThemeConfig, reloaded.ThemeConfig)
}

func TestUpdateDeactivatesStore(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateStoreInput{Slug: "soon-closed"})
	require.NoError(t, err)

	inactive := enums.StoreStatusInactive
	_, err = svc.Update(ctx, created.ID, UpdateStoreInput{Status: &inactive})
	require.NoError(t, err)

	_, err = svc.ResolveBySlug(ctx, "soon-closed")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Update(ctx, uuid.New(), UpdateStoreInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, slug := range []string{"a-shop", "b-shop", "c-shop"} {
		_, err := svc.Create(ctx, CreateStoreInput{Slug: slug})
		require.NoError(t, err)
	}

	page, total, err := svc.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "My Shop", DisplayName("", "my-shop"))
	assert.Equal(t, "Kept", DisplayName(" Kept ", "my-shop"))
	assert.True(t, ValidSlug("shop-2"))
	assert.False(t, ValidSlug("-shop"))
}
