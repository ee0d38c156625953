package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/usage-gov/internal/models"
	"github.com/benvon/usage-gov/internal/validation"
)

// UsageStore is the ledger surface the handler needs.
type UsageStore interface {
	Insert(ctx context.Context, event *models.UsageEvent) error
	Query(ctx context.Context, feature string, since time.Time, limit int) ([]*models.UsageEvent, error)
}

// UsageHandler appends and reads usage ledger entries. Appending is a
// collaborator action; the governance core itself only consumes the
// ledger through aggregates.
type UsageHandler struct {
	repo UsageStore
	log  *zap.Logger
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(repo UsageStore, log *zap.Logger) *UsageHandler {
	return &UsageHandler{repo: repo, log: log}
}

// RegisterRoutes registers usage routes on the router.
func (h *UsageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.RecordUsage).Methods("POST")
	r.HandleFunc("", h.QueryUsage).Methods("GET")
}

// RecordUsage handles POST /usage, appending one ledger event.
func (h *UsageHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	var event models.UsageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	if err := validation.Validate.Struct(&event); err != nil {
		respondDomainError(w, fmt.Errorf("%w: %v", validation.ErrValidationFailed, err))
		return
	}

	event.ID = uuid.New()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := h.repo.Insert(r.Context(), &event); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": event.ID.String()})
}

// QueryUsage handles GET /usage?feature=&since=&limit=.
func (h *UsageHandler) QueryUsage(w http.ResponseWriter, r *http.Request) {
	feature := r.URL.Query().Get("feature")

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "since must be RFC3339")
			return
		}
		since = parsed
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "limit must be an integer")
			return
		}
	}

	events, err := h.repo.Query(r.Context(), feature, since, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}
