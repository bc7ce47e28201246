// Package handlers provides HTTP handlers for audit ledger queries.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"coffer/internal/modules/ledger"
)

// Handler handles audit ledger HTTP requests
type Handler struct {
	repo *ledger.Repository
	log  zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(repo *ledger.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetRecords handles GET /api/ledger/records
func (h *Handler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	operation := r.URL.Query().Get("operation")

	records, err := h.repo.Recent(limit, operation)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query audit records")
		http.Error(w, "Failed to query audit records", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"records":   records,
			"count":     len(records),
			"operation": operation,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetRecordByID handles GET /api/ledger/records/{id}
func (h *Handler) HandleGetRecordByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.repo.GetByID(id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("Failed to query audit record")
		http.Error(w, "Failed to query audit record", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": rec,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetSummary handles GET /api/ledger/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.Summary()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query audit summary")
		http.Error(w, "Failed to query audit summary", http.StatusInternalServerError)
		return
	}

	total, err := h.repo.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count audit records")
		http.Error(w, "Failed to count audit records", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"operations":    summary,
			"total_records": total,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
