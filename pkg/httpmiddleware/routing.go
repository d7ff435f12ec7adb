package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routing seeds the request with an empty chi routing context, so
// middlewares running outside the router can read the matched pattern with
// RoutePattern once the router has served the request.
func Routing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if chi.RouteContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoutePattern returns the route matched for r, or "unknown" when no route
// matched yet.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}
