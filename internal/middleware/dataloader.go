package middleware

import (
	"context"
	"net/http"

	"github.com/wealthops/engine/internal/refloader"
)

type ctxKey string

const refLoaderKey ctxKey = "refLoader"

// DataLoaderMiddleware attaches fresh reference loaders to each request
// context, so concurrent requests never share a loader cache.
func DataLoaderMiddleware(client refloader.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loaders := refloader.New(client)
			ctx := context.WithValue(r.Context(), refLoaderKey, loaders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RefLoadersFromContext retrieves the request's reference loaders.
func RefLoadersFromContext(ctx context.Context) *refloader.Loaders {
	if l, ok := ctx.Value(refLoaderKey).(*refloader.Loaders); ok {
		return l
	}
	return nil
}
