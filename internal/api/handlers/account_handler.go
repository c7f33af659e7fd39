package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netledger/netledger/internal/ledger"
)

// BalanceCache is the read-through cache consulted by GetBalance, narrowed
// to the two operations the handler needs so this package doesn't have to
// import internal/ledger/rediscache directly. Satisfied by *rediscache.Cache.
type BalanceCache interface {
	Get(ctx context.Context, accountGuid uuid.UUID) (*ledger.Balance, bool, error)
	Set(ctx context.Context, balance *ledger.Balance) error
}

// AccountHandler exposes the Ledger Core's account and balance
// operations over HTTP, per spec.md §6's "/v1/accounts..." surface.
type AccountHandler struct {
	core  *ledger.TracedCore
	cache BalanceCache
}

func NewAccountHandler(core *ledger.TracedCore) *AccountHandler {
	return &AccountHandler{core: core}
}

// WithBalanceCache enables read-through caching for GetBalance. Optional —
// an AccountHandler with no cache set simply always calls through to the
// core, per SPEC_FULL.md's "cache is purely a performance layer" note.
func (h *AccountHandler) WithBalanceCache(cache BalanceCache) *AccountHandler {
	h.cache = cache
	return h
}

type createAccountRequest struct {
	Name  string
	Notes string
}

type accountResponse struct {
	Guid       uuid.UUID
	Name       string
	Notes      string
	CreatedUtc time.Time
}

func toAccountResponse(a *ledger.Account) accountResponse {
	return accountResponse{Guid: a.Guid, Name: a.Name, Notes: a.Notes, CreatedUtc: a.CreatedUtc}
}

// Create handles PUT /v1/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.core.CreateAccount(r.Context(), req.Name, req.Notes)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccountResponse(account))
}

func accountGuidParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid account guid", http.StatusBadRequest)
		return uuid.UUID{}, false
	}
	return id, true
}

// Get handles GET /v1/accounts/{id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}
	account, err := h.core.Accounts().ReadByGuid(r.Context(), guid)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

// Delete handles DELETE /v1/accounts/{id}.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}
	if err := h.core.DeleteAccount(r.Context(), guid); err != nil {
		respondLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enumerateAccountsRequest struct {
	MaxResults        int
	Skip              int
	ContinuationToken *uuid.UUID
	SearchTerm        string
	BalanceMin        *decimal.Decimal
	BalanceMax        *decimal.Decimal
	Ordering          ledger.Ordering
}

// Enumerate handles POST /v1/accounts/enumerate.
func (h *AccountHandler) Enumerate(w http.ResponseWriter, r *http.Request) {
	var req enumerateAccountsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	page, err := h.core.EnumerateAccounts(r.Context(), ledger.AccountQuery{
		MaxResults:        req.MaxResults,
		Skip:              req.Skip,
		ContinuationToken: req.ContinuationToken,
		SearchTerm:        req.SearchTerm,
		BalanceMin:        req.BalanceMin,
		BalanceMax:        req.BalanceMax,
		Ordering:          req.Ordering,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GetBalance handles GET /v1/accounts/{id}/balance. Consults the balance
// cache first when one is configured; a cache miss or error falls back
// to the core transparently, per SPEC_FULL.md's "never a source of
// truth" note.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		if cached, hit, err := h.cache.Get(r.Context(), guid); err == nil && hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	balance, err := h.core.GetBalance(r.Context(), guid)
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	if h.cache != nil {
		_ = h.cache.Set(r.Context(), balance)
	}

	respondJSON(w, http.StatusOK, balance)
}

// GetBalanceAsOf handles GET /v1/accounts/{id}/balance/asof?at=<RFC3339>.
func (h *AccountHandler) GetBalanceAsOf(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}
	atParam := r.URL.Query().Get("at")
	at, err := time.Parse(time.RFC3339Nano, atParam)
	if err != nil {
		respondError(w, "invalid 'at' timestamp", http.StatusBadRequest)
		return
	}

	balance, err := h.core.BalanceAsOf(r.Context(), guid, at)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		AccountGuid uuid.UUID
		At          time.Time
		Balance     decimal.Decimal
	}{AccountGuid: guid, At: at, Balance: balance})
}

// Verify handles GET /v1/accounts/{id}/verify.
func (h *AccountHandler) Verify(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}
	valid, err := h.core.VerifyBalanceChain(r.Context(), guid)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		AccountGuid uuid.UUID
		Valid       bool
	}{AccountGuid: guid, Valid: valid})
}

type batchItemRequest struct {
	Amount decimal.Decimal
	Notes  string
}

type addEntriesRequest struct {
	Items            []batchItemRequest
	AlreadyCommitted bool
}

// AddCredits handles PUT /v1/accounts/{id}/credits.
func (h *AccountHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	h.addEntries(w, r, h.core.AddCredits)
}

// AddDebits handles PUT /v1/accounts/{id}/debits.
func (h *AccountHandler) AddDebits(w http.ResponseWriter, r *http.Request) {
	h.addEntries(w, r, h.core.AddDebits)
}

func (h *AccountHandler) addEntries(
	w http.ResponseWriter,
	r *http.Request,
	add func(ctx context.Context, accountGuid uuid.UUID, items []ledger.BatchItem, alreadyCommitted bool) ([]*ledger.Entry, error),
) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}

	var req addEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	items := make([]ledger.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ledger.BatchItem{Amount: it.Amount, Notes: it.Notes})
	}

	entries, err := add(r.Context(), guid, items, req.AlreadyCommitted)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entries)
}

// Commit handles POST /v1/accounts/{id}/commit.
func (h *AccountHandler) Commit(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}

	var req struct{ EntryGuids []uuid.UUID }
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	balance, err := h.core.Commit(r.Context(), guid, req.EntryGuids)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}
