// Package handlers provides HTTP handlers for runtime settings.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"coffer/internal/modules/pool"
	"coffer/internal/modules/settings"
)

// Handler handles settings HTTP requests. Writes are persisted to the
// settings repository and then applied to the live pool, so a change takes
// effect immediately and survives a restart.
type Handler struct {
	repo *settings.Repository
	pool *pool.Pool
	log  zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(repo *settings.Repository, p *pool.Pool, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		pool: p,
		log:  log.With().Str("handler", "settings").Logger(),
	}
}

// RegisterRoutes registers all settings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Get("/{key}", h.HandleGet)
		r.Put("/{key}", h.HandleSet)
		r.Delete("/{key}", h.HandleDelete)
	})
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get settings")
		http.Error(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"settings": all,
			"count":    len(all),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := h.repo.Get(key)
	if err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to get setting")
		http.Error(w, "Failed to get setting", http.StatusInternalServerError)
		return
	}
	if value == nil {
		http.Error(w, "Setting not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"key":   key,
			"value": *value,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// SetRequest is the body for PUT /api/settings/{key}
type SetRequest struct {
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
}

// HandleSet handles PUT /api/settings/{key}
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Set(key, req.Value, req.Description); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to set setting")
		http.Error(w, "Failed to set setting", http.StatusInternalServerError)
		return
	}

	// Push the stored value into the running pool. A value the pool rejects
	// stays in the database but is reported to the caller.
	var applyErr string
	if h.pool != nil {
		if err := settings.ApplyToPool(h.repo, h.pool); err != nil {
			h.log.Warn().Err(err).Str("key", key).Msg("Stored setting not applied to pool")
			applyErr = err.Error()
		}
	}

	data := map[string]interface{}{
		"key":   key,
		"value": req.Value,
	}
	if applyErr != "" {
		data["apply_error"] = applyErr
	}

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleDelete handles DELETE /api/settings/{key}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := h.repo.Delete(key); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("Failed to delete setting")
		http.Error(w, "Failed to delete setting", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"key":     key,
			"deleted": true,
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
