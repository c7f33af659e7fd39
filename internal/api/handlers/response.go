// Package handlers implements the HTTP transport for the ledger core:
// thin, PascalCase-JSON adapters over internal/ledger and internal/apikey,
// grounded on the teacher's handlers package (parse request -> call
// service -> map error -> respond) and response.go helper shape.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/netledger/netledger/internal/ledger"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string
}

func respondJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondLedgerError maps a ledger.Error's Kind to the HTTP status
// defined in spec.md §7 and writes it as the response body. Errors that
// aren't a *ledger.Error are treated as Internal.
func respondLedgerError(w http.ResponseWriter, err error) {
	lerr, ok := ledger.AsError(err)
	if !ok {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch lerr.Kind {
	case ledger.KindInvalidArgument:
		status = http.StatusBadRequest
	case ledger.KindUnauthorized:
		status = http.StatusUnauthorized
	case ledger.KindNotFound:
		status = http.StatusNotFound
	case ledger.KindConflict:
		status = http.StatusConflict
	case ledger.KindTimeout:
		status = http.StatusRequestTimeout
	case ledger.KindInternal:
		status = http.StatusInternalServerError
	}
	respondError(w, lerr.Message, status)
}
