package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netledger/netledger/internal/apikey"
	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/internal/ledger/memorydb"
	"github.com/netledger/netledger/pkg/logger"
)

func newTestAuthService(t *testing.T) *apikey.Service {
	t.Helper()
	store := memorydb.New()
	return apikey.NewService(store.ApiKeys(), ledger.RealClock{}, logger.NewDefault("test"))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestApiKeyAuth_RejectsMissingHeader(t *testing.T) {
	svc := newTestAuthService(t)
	handler := ApiKeyAuth(svc)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApiKeyAuth_RejectsInvalidToken(t *testing.T) {
	svc := newTestAuthService(t)
	handler := ApiKeyAuth(svc)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApiKeyAuth_AcceptsValidToken(t *testing.T) {
	svc := newTestAuthService(t)
	issued, err := svc.Create(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "ci", false)
	require.NoError(t, err)

	var resolvedGuid any
	handler := ApiKeyAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guid, ok := KeyGuidFromContext(r.Context())
		if ok {
			resolvedGuid = guid
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, issued.Key.Guid, resolvedGuid)
}

func TestRequireAdmin_RejectsNonAdminKey(t *testing.T) {
	svc := newTestAuthService(t)
	issued, err := svc.Create(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "ci", false)
	require.NoError(t, err)

	handler := ApiKeyAuth(svc)(RequireAdmin(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin_AcceptsAdminKey(t *testing.T) {
	svc := newTestAuthService(t)
	issued, err := svc.Create(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "admin", true)
	require.NoError(t, err)

	handler := ApiKeyAuth(svc)(RequireAdmin(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
