package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"coffer/internal/modules/allocator"
	"coffer/internal/modules/pool"
	"coffer/internal/modules/settings"
)

func setupTestHandler(t *testing.T) (chi.Router, *pool.Pool) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo, err := settings.NewRepository(conn, zerolog.Nop())
	require.NoError(t, err)

	alloc, err := allocator.New("USDC", allocator.DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	p, err := pool.New("USDC", pool.DefaultConfig(), alloc, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	h := NewHandler(repo, p, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r, p
}

func doRequest(router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleSet_AppliesToLivePool(t *testing.T) {
	router, p := setupTestHandler(t)

	rec := doRequest(router, http.MethodPut, "/api/settings/"+settings.KeyPerformanceFeeBP,
		`{"value": "2000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "apply_error")
	assert.Equal(t, int64(2000), p.Config().PerformanceFeeBP)

	rec = doRequest(router, http.MethodGet, "/api/settings/"+settings.KeyPerformanceFeeBP, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"2000"`)
}

func TestHandleSet_RejectedValueIsReported(t *testing.T) {
	router, p := setupTestHandler(t)

	// Out of basis point range: stored but the pool refuses it.
	rec := doRequest(router, http.MethodPut, "/api/settings/"+settings.KeyPerformanceFeeBP,
		`{"value": "20000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apply_error")
	assert.Equal(t, int64(pool.DefaultPerformanceFeeBP), p.Config().PerformanceFeeBP)
}

func TestHandleSet_Validation(t *testing.T) {
	router, _ := setupTestHandler(t)

	rec := doRequest(router, http.MethodPut, "/api/settings/some_key", `{"value": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPut, "/api/settings/some_key", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAllAndDelete(t *testing.T) {
	router, _ := setupTestHandler(t)

	doRequest(router, http.MethodPut, "/api/settings/"+settings.KeyMinContribution, `{"value": "50"}`)

	rec := doRequest(router, http.MethodGet, "/api/settings/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), settings.KeyMinContribution)

	rec = doRequest(router, http.MethodDelete, "/api/settings/"+settings.KeyMinContribution, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/settings/"+settings.KeyMinContribution, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
