package server

import (
	"encoding/json"
	"net/http"
	"time"

	"coffer/internal/database"
)

// handleHealth handles health check requests. It pings each database so a
// wedged SQLite file flips the service to degraded instead of silently
// serving stale state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	databases := map[string]string{}
	healthy := true
	for name, check := range map[string]func() error{
		s.configDB.Name():    func() error { return s.configDB.QuickCheck(ctx) },
		s.ledgerDB.Name():    func() error { return s.ledgerDB.QuickCheck(ctx) },
		s.snapshotsDB.Name(): func() error { return s.snapshotsDB.QuickCheck(ctx) },
	} {
		if err := check(); err != nil {
			databases[name] = err.Error()
			healthy = false
		} else {
			databases[name] = "ok"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"service":   "coffer",
		"paused":    s.pool.Paused(),
		"databases": databases,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	s.writeJSON(w, code, response)
}

// handleStats handles GET /api/system/stats - per-database file statistics,
// mainly to watch WAL growth between checkpoint runs.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	databases := map[string]interface{}{}
	for _, db := range []*database.DB{s.configDB, s.ledgerDB, s.snapshotsDB} {
		stats, err := db.GetStats()
		if err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to collect database stats")
			http.Error(w, "Failed to collect database stats", http.StatusInternalServerError)
			return
		}
		databases[db.Name()] = map[string]interface{}{
			"profile":        string(db.Profile()),
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
			"page_size":      stats.PageSize,
		}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"databases": databases,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
