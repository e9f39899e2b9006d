package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/stores"
)

type contextKey string

const ctxStore contextKey = "store"

// WithStore attaches the resolved tenant store to ctx.
func WithStore(ctx context.Context, store *stores.StoreDTO) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxStore, store)
}

// StoreFromContext returns the store attached by StoreResolver or AdminStoreScope.
func StoreFromContext(ctx context.Context) *stores.StoreDTO {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxStore).(*stores.StoreDTO); ok {
		return v
	}
	return nil
}

// StoreIDFromContext returns the resolved store id, or "" outside a store route.
func StoreIDFromContext(ctx context.Context) string {
	if store := StoreFromContext(ctx); store != nil {
		return store.ID.String()
	}
	return ""
}
