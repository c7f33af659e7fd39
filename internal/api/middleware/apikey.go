package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/netledger/netledger/internal/apikey"
	"github.com/netledger/netledger/internal/ledger"
)

type contextKey string

const apiKeyContextKey contextKey = "api_key"

// ApiKeyAuth returns middleware that authenticates requests bearing
// "Authorization: Bearer <token>", verifying the token against svc and
// storing the resolved key on the request context. Grounded on the
// teacher's JWTMiddleware contract (reject unauthenticated requests with
// 401, make the principal retrievable from context) but adapted for the
// opaque bearer-token credential spec.md §1/§3 calls for instead of JWT.
func ApiKeyAuth(svc *apikey.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			key, err := svc.Verify(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose resolved api key is not an admin
// key. Must run after ApiKeyAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, ok := KeyFromContext(r.Context())
		if !ok || !key.IsAdmin {
			writeUnauthorized(w, "admin api key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// KeyFromContext retrieves the api key resolved by ApiKeyAuth.
func KeyFromContext(ctx context.Context) (*ledger.ApiKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*ledger.ApiKey)
	return key, ok
}

// KeyGuidFromContext is a convenience accessor for handlers that only
// need the authenticated key's identity.
func KeyGuidFromContext(ctx context.Context) (uuid.UUID, bool) {
	key, ok := KeyFromContext(ctx)
	if !ok {
		return uuid.UUID{}, false
	}
	return key.Guid, true
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"Error":"` + message + `"}`))
}
