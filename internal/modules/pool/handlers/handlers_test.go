package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffer/internal/domain"
	"coffer/internal/modules/allocator"
	"coffer/internal/modules/pool"
	"coffer/internal/modules/strategies"
)

func setupTestHandler(t *testing.T) (*Handler, *pool.Pool) {
	t.Helper()
	alloc, err := allocator.New("USDC", allocator.DefaultConfig(), nil, zerolog.Nop())
	require.NoError(t, err)

	cfg := pool.DefaultConfig()
	cfg.MinContribution = 10
	p, err := pool.New("USDC", cfg, alloc, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	factory := func(name string, apyBP int64) (domain.Strategy, error) {
		return strategies.NewSim(name, "USDC", apyBP), nil
	}
	return NewHandler(p, factory, zerolog.Nop()), p
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Contains(t, response, "metadata")
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data must be an object")
	return data
}

func TestHandleDepositAndStatus(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/pool/deposit",
		DepositRequest{Holder: "alice", Amount: 1000})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(1000), data["units"])

	rec = doJSON(t, router, http.MethodGet, "/api/pool/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeData(t, rec)
	assert.Equal(t, float64(1000), data["total_value"])
	assert.Equal(t, "USDC", data["asset"])
}

func TestHandleDeposit_Errors(t *testing.T) {
	h, p := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/pool/deposit",
		DepositRequest{Holder: "", Amount: 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/deposit",
		DepositRequest{Holder: "alice", Amount: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p.Pause()
	rec = doJSON(t, router, http.MethodPost, "/api/pool/deposit",
		DepositRequest{Holder: "alice", Amount: 100})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleWithdraw(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	doJSON(t, router, http.MethodPost, "/api/pool/deposit",
		DepositRequest{Holder: "alice", Amount: 1000})

	rec := doJSON(t, router, http.MethodPost, "/api/pool/withdraw",
		WithdrawRequest{Holder: "alice", Amount: 400, Recipient: "alice-wallet"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(400), data["paid"])

	rec = doJSON(t, router, http.MethodPost, "/api/pool/withdraw",
		WithdrawRequest{Holder: "bob", Amount: 100, Recipient: "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no shares")
}

func TestHandleStrategyLifecycle(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/pool/strategies",
		RegisterStrategyRequest{Name: "aave", APYBP: 500})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/strategies",
		RegisterStrategyRequest{Name: "aave", APYBP: 500})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate name")

	rec = doJSON(t, router, http.MethodGet, "/api/pool/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(1), data["count"])

	rec = doJSON(t, router, http.MethodDelete, "/api/pool/strategies/aave", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/pool/strategies/aave", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleEmergencyPath(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	// Drain before pause is rejected.
	rec := doJSON(t, router, http.MethodPost, "/api/pool/emergency-drain", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/emergency-drain", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/sync-idle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/unpause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRebalanceCheck(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/pool/rebalance/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, false, data["should_rebalance"])

	rec = doJSON(t, router, http.MethodPost, "/api/pool/rebalance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "rebalance not needed")
}

func TestHandleGetConfig(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodGet, "/api/pool/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.Contains(t, data, "pool")
	require.Contains(t, data, "allocation")
	poolCfg := data["pool"].(map[string]interface{})
	assert.Equal(t, float64(pool.DefaultPerformanceFeeBP), poolCfg["performance_fee_bp"])
}

func TestHandleHarvest_RequiresCaller(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := newRouter(h)

	rec := doJSON(t, router, http.MethodPost, "/api/pool/harvest", HarvestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/pool/harvest",
		HarvestRequest{Caller: "keeper"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(0), data["profit"])
}
