// Package handlers provides HTTP handlers for pool state snapshots.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"coffer/internal/modules/pool"
	"coffer/internal/modules/snapshots"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	repo *snapshots.Repository
	pool *pool.Pool
	log  zerolog.Logger
}

// NewHandler creates a new snapshots handler
func NewHandler(repo *snapshots.Repository, p *pool.Pool, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		pool: p,
		log:  log.With().Str("handler", "snapshots").Logger(),
	}
}

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/snapshots", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/latest", h.HandleLatest)
		r.Post("/", h.HandleTake)
	})
}

// HandleList handles GET /api/snapshots
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	list, err := h.repo.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": list,
			"count":     len(list),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleLatest handles GET /api/snapshots/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.repo.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest snapshot")
		http.Error(w, "Failed to get latest snapshot", http.StatusInternalServerError)
		return
	}
	if latest == nil {
		http.Error(w, "No snapshots recorded", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": latest,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleTake handles POST /api/snapshots - capture the pool state now
func (h *Handler) HandleTake(w http.ResponseWriter, r *http.Request) {
	snap := snapshots.Take(h.pool)
	if err := h.repo.Save(snap); err != nil {
		h.log.Error().Err(err).Msg("Failed to save snapshot")
		http.Error(w, "Failed to save snapshot", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": snap,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusCreated, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
