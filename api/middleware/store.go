package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/stores"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// StoreLookup looks up stores for tenant-scoped routes.
type StoreLookup interface {
	ResolveBySlug(ctx context.Context, slug string) (*stores.StoreDTO, error)
	GetByID(ctx context.Context, id uuid.UUID) (*stores.StoreDTO, error)
}

// StoreResolver loads the active store named by the {slug} route parameter.
// Unknown and inactive stores are answered with 404.
func StoreResolver(resolver StoreLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, err := resolver.ResolveBySlug(r.Context(), chi.URLParam(r, "slug"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(attachStore(r.Context(), store, logg)))
		})
	}
}

// AdminStoreScope loads the store named by the {storeId} route parameter,
// whatever its status.
func AdminStoreScope(resolver StoreLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(chi.URLParam(r, "storeId"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "store not found"))
				return
			}
			store, err := resolver.GetByID(r.Context(), id)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(attachStore(r.Context(), store, logg)))
		})
	}
}

func attachStore(ctx context.Context, store *stores.StoreDTO, logg *logger.Logger) context.Context {
	ctx = WithStore(ctx, store)
	if logg != nil {
		ctx = logg.WithStoreID(ctx, store.ID.String())
	}
	return ctx
}
