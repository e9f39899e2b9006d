// Package admin holds the bearer-token protected CRUD handlers. Every
// handler below a store route reads the store attached by
// middleware.AdminStoreScope, so rows from other tenants are never visible.
package admin

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/stores"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func scopedStore(r *http.Request) (*stores.StoreDTO, error) {
	store := middleware.StoreFromContext(r.Context())
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return store, nil
}
