package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netledger/netledger/internal/apikey"
)

// ApiKeyHandler exposes admin-only api-key issuance and revocation.
type ApiKeyHandler struct {
	service *apikey.Service
}

func NewApiKeyHandler(service *apikey.Service) *ApiKeyHandler {
	return &ApiKeyHandler{service: service}
}

type createApiKeyRequest struct {
	Name    string
	IsAdmin bool
}

type createApiKeyResponse struct {
	Guid  uuid.UUID
	Name  string
	Token string
}

// Create handles PUT /v1/apikeys. The plaintext token is returned exactly
// once, in this response.
func (h *ApiKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createApiKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	issued, err := h.service.Create(r.Context(), req.Name, req.IsAdmin)
	if err != nil {
		if errors.Is(err, apikey.ErrInvalidName) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, createApiKeyResponse{
		Guid:  issued.Key.Guid,
		Name:  issued.Key.Name,
		Token: issued.Token,
	})
}

// Delete handles DELETE /v1/apikeys/{id}.
func (h *ApiKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	guid, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid api key guid", http.StatusBadRequest)
		return
	}
	if err := h.service.Revoke(r.Context(), guid); err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
