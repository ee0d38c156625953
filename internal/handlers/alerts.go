package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/alerts"
	"github.com/benvon/usage-gov/internal/models"
)

// AlertHandler exposes threshold configuration and on-demand
// evaluation over HTTP.
type AlertHandler struct {
	evaluator *alerts.Evaluator
	log       *zap.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(evaluator *alerts.Evaluator, log *zap.Logger) *AlertHandler {
	return &AlertHandler{evaluator: evaluator, log: log}
}

// RegisterRoutes registers alert routes on the router.
func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListAlerts).Methods("GET")
	r.HandleFunc("/evaluate", h.Evaluate).Methods("POST")
	r.HandleFunc("/{feature}", h.ConfigureAlerts).Methods("PUT")
	r.HandleFunc("/{id}", h.ToggleAlert).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteAlert).Methods("DELETE")
}

// ConfigureAlerts handles PUT /alerts/{feature}.
func (h *AlertHandler) ConfigureAlerts(w http.ResponseWriter, r *http.Request) {
	feature := mux.Vars(r)["feature"]

	var limits models.AlertLimits
	if err := json.NewDecoder(r.Body).Decode(&limits); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	configs, err := h.evaluator.ConfigureAlerts(r.Context(), feature, &limits)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

// ListAlerts handles GET /alerts.
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	configs, err := h.evaluator.ListAlerts(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

// Evaluate handles POST /alerts/evaluate, running one evaluation pass
// synchronously and returning the produced alert set.
func (h *AlertHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	result, err := h.evaluator.EvaluateThresholds(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ToggleAlert handles PATCH /alerts/{id} with body {"enabled": bool}.
func (h *AlertHandler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid alert id")
		return
	}

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "body must contain enabled flag")
		return
	}

	if err := h.evaluator.ToggleAlert(r.Context(), id, *body.Enabled); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":      id.String(),
		"enabled": strconv.FormatBool(*body.Enabled),
	})
}

// DeleteAlert handles DELETE /alerts/{id}.
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid alert id")
		return
	}

	if err := h.evaluator.DeleteAlert(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
