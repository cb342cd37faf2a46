package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/tamrstore/storefront/pkg/httputil"
	"github.com/tamrstore/storefront/pkg/middleware"
)

type contextKey string

const shopperIDKey contextKey = "shopper_id"

// maxShopperIDLen bounds the header, which becomes part of a storage key.
const maxShopperIDLen = 128

// ShopperFromHeader reads the X-User-ID header set by the storefront front
// end and stores it in the request context. Requests without it get a 401.
func ShopperFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.UserIDHeader))
		if id == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "X-User-ID header is required"},
			})
			return
		}
		if len(id) > maxShopperIDLen {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "X-User-ID header is too long"},
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), shopperIDKey, id)))
	})
}

func shopperFromContext(ctx context.Context) string {
	id, _ := ctx.Value(shopperIDKey).(string)
	return id
}

// ContentTypeJSON rejects request bodies that are not declared as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
