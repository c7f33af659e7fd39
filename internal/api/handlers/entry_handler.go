package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netledger/netledger/internal/ledger"
)

// EntryHandler exposes per-account entry enumeration and cancellation,
// per spec.md §6.
type EntryHandler struct {
	core *ledger.TracedCore
}

func NewEntryHandler(core *ledger.TracedCore) *EntryHandler {
	return &EntryHandler{core: core}
}

type enumerateEntriesRequest struct {
	MaxResults        int
	Skip              int
	ContinuationToken *uuid.UUID
	CreatedAfterUtc   *time.Time
	CreatedBeforeUtc  *time.Time
	AmountMin         *decimal.Decimal
	AmountMax         *decimal.Decimal
	Type              *ledger.EntryType
	IsCommitted       *bool
	Ordering          ledger.Ordering
}

// Enumerate handles POST /v1/accounts/{id}/entries/enumerate.
func (h *EntryHandler) Enumerate(w http.ResponseWriter, r *http.Request) {
	guid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}

	var req enumerateEntriesRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	page, err := h.core.EnumerateEntries(r.Context(), guid, ledger.EntryQuery{
		MaxResults:        req.MaxResults,
		Skip:              req.Skip,
		ContinuationToken: req.ContinuationToken,
		CreatedAfterUtc:   req.CreatedAfterUtc,
		CreatedBeforeUtc:  req.CreatedBeforeUtc,
		AmountMin:         req.AmountMin,
		AmountMax:         req.AmountMax,
		Type:              req.Type,
		IsCommitted:       req.IsCommitted,
		Ordering:          req.Ordering,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Delete handles DELETE /v1/accounts/{id}/entries/{entry}.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountGuid, ok := accountGuidParam(w, r)
	if !ok {
		return
	}
	entryGuid, err := uuid.Parse(chi.URLParam(r, "entry"))
	if err != nil {
		respondError(w, "invalid entry guid", http.StatusBadRequest)
		return
	}

	if err := h.core.CancelPending(r.Context(), accountGuid, entryGuid); err != nil {
		respondLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
