package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netledger/netledger/internal/ledger"
	"github.com/netledger/netledger/internal/ledger/memorydb"
)

func newTestRouter(t *testing.T) (*chi.Mux, *AccountHandler, *EntryHandler) {
	t.Helper()
	store := memorydb.New()
	clock := ledger.RealClock{}
	entries := ledger.NewEntryStore(store.Entries())
	accounts := ledger.NewAccountRegistry(store.Accounts(), entries, clock)
	core := ledger.NewLedgerCore(store, accounts, entries, clock, ledger.NewNotifier(nil))
	traced := ledger.NewTracedCore(core)

	accountHandler := NewAccountHandler(traced)
	entryHandler := NewEntryHandler(traced)

	r := chi.NewRouter()
	r.Put("/v1/accounts", accountHandler.Create)
	r.Get("/v1/accounts/{id}", accountHandler.Get)
	r.Delete("/v1/accounts/{id}", accountHandler.Delete)
	r.Put("/v1/accounts/{id}/credits", accountHandler.AddCredits)
	r.Put("/v1/accounts/{id}/debits", accountHandler.AddDebits)
	r.Post("/v1/accounts/{id}/commit", accountHandler.Commit)
	r.Get("/v1/accounts/{id}/balance", accountHandler.GetBalance)
	r.Get("/v1/accounts/{id}/verify", accountHandler.Verify)
	r.Delete("/v1/accounts/{id}/entries/{entry}", entryHandler.Delete)

	return r, accountHandler, entryHandler
}

func doRequest(r *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAccountHandler_CreateThenGet(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking", Notes: "primary"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "checking", created.Name)
	assert.NotEqual(t, uuid.Nil, created.Guid)

	rec = doRequest(r, http.MethodGet, "/v1/accounts/"+created.Guid.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.Guid, got.Guid)
}

func TestAccountHandler_GetUnknownGuidReturns404(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodGet, "/v1/accounts/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountHandler_GetInvalidGuidReturns400(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodGet, "/v1/accounts/not-a-guid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandler_CreateDuplicateNameReturns409(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAccountHandler_AddCreditsThenCommitThenBalance(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var account accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = doRequest(r, http.MethodPut, "/v1/accounts/"+account.Guid.String()+"/credits", addEntriesRequest{
		Items: []batchItemRequest{{Amount: decimal.NewFromInt(100), Notes: "deposit"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = doRequest(r, http.MethodPost, "/v1/accounts/"+account.Guid.String()+"/commit", struct{ EntryGuids []uuid.UUID }{
		EntryGuids: []uuid.UUID{entries[0].Guid},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/v1/accounts/"+account.Guid.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var balance ledger.Balance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.True(t, balance.CommittedBalance.Equal(decimal.NewFromInt(100)))
}

func TestAccountHandler_Verify(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var account accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = doRequest(r, http.MethodGet, "/v1/accounts/"+account.Guid.String()+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		AccountGuid uuid.UUID
		Valid       bool
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Valid)
}

func TestAccountHandler_Delete(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var account accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = doRequest(r, http.MethodDelete, "/v1/accounts/"+account.Guid.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(r, http.MethodGet, "/v1/accounts/"+account.Guid.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntryHandler_DeletePendingEntry(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(r, http.MethodPut, "/v1/accounts", createAccountRequest{Name: "checking"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var account accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))

	rec = doRequest(r, http.MethodPut, "/v1/accounts/"+account.Guid.String()+"/debits", addEntriesRequest{
		Items: []batchItemRequest{{Amount: decimal.NewFromInt(10)}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)

	rec = doRequest(r, http.MethodDelete, "/v1/accounts/"+account.Guid.String()+"/entries/"+entries[0].Guid.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
