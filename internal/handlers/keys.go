package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/vault"
)

// KeyHandler exposes credential vault operations over HTTP. Plaintext
// keys only ever travel inbound; responses carry masked views.
type KeyHandler struct {
	vault *vault.Vault
	log   *zap.Logger
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler(v *vault.Vault, log *zap.Logger) *KeyHandler {
	return &KeyHandler{vault: v, log: log}
}

// RegisterRoutes registers key routes on the router.
func (h *KeyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.StoreKey).Methods("POST")
	r.HandleFunc("", h.ListKeys).Methods("GET")
	r.HandleFunc("/rotate", h.RotateKey).Methods("POST")
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

type storeKeyRequest struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// StoreKey handles POST /keys.
func (h *KeyHandler) StoreKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	keyID, err := h.vault.StoreKey(r.Context(), req.Provider, req.Key)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"key_id":     keyID,
		"provider":   req.Provider,
		"masked_key": vault.MaskKey(req.Key),
	})
}

// RotateKey handles POST /keys/rotate.
func (h *KeyHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	keyID, err := h.vault.RotateKey(r.Context(), req.Provider, req.Key)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"key_id":     keyID,
		"provider":   req.Provider,
		"masked_key": vault.MaskKey(req.Key),
	})
}

// ListKeys handles GET /keys, returning masked views only.
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	views, err := h.vault.ListKeys(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// HealthCheck handles GET /keys/health, reporting per-provider
// credential health without exposing key material.
func (h *KeyHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.vault.HealthCheck(r.Context()))
}
