package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"coffer/internal/modules/ledger"
)

func setupTestHandler(t *testing.T) (*Handler, *ledger.Repository) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := ledger.NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return NewHandler(repo, zerolog.Nop()), repo
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func TestHandleGetRecords(t *testing.T) {
	h, repo := setupTestHandler(t)
	repo.Record("deposit", map[string]any{"holder": "alice", "amount": 1000})
	repo.Record("withdrawal", map[string]any{"holder": "alice", "amount": 400})

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/records?operation=deposit", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	assert.Equal(t, "deposit", data["operation"])
	assert.Contains(t, response, "metadata")
}

func TestHandleGetRecordByID(t *testing.T) {
	h, repo := setupTestHandler(t)
	repo.Record("paused", map[string]any{"idle": 0})

	records, err := repo.Recent(1, "")
	require.NoError(t, err)
	require.Len(t, records, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/records/"+records[0].ID, nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ledger/records/nope", nil)
	rec = httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetSummary(t *testing.T) {
	h, repo := setupTestHandler(t)
	repo.Record("deposit", nil)
	repo.Record("deposit", nil)
	repo.Record("harvest_success", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/summary", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["total_records"])
	assert.Len(t, data["operations"], 2)
}
