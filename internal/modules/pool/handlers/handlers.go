// Package handlers provides the HTTP surface of the capital pool: deposits,
// withdrawals, harvests, allocation control, and the emergency path.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"coffer/internal/domain"
	"coffer/internal/modules/pool"
)

// StrategyFactory builds a strategy backend from a registration request.
// In dev mode this produces simulated strategies; a production build wires a
// factory for real backends.
type StrategyFactory func(name string, apyBP int64) (domain.Strategy, error)

// Handler handles pool HTTP requests
type Handler struct {
	pool    *pool.Pool
	factory StrategyFactory
	log     zerolog.Logger
}

// NewHandler creates a new pool handler. factory may be nil, which disables
// strategy registration over HTTP.
func NewHandler(p *pool.Pool, factory StrategyFactory, log zerolog.Logger) *Handler {
	return &Handler{
		pool:    p,
		factory: factory,
		log:     log.With().Str("handler", "pool").Logger(),
	}
}

// DepositRequest is the body for POST /api/pool/deposit
type DepositRequest struct {
	Holder string `json:"holder"`
	Amount int64  `json:"amount"`
}

// MintRequest is the body for POST /api/pool/mint
type MintRequest struct {
	Holder string `json:"holder"`
	Units  int64  `json:"units"`
}

// WithdrawRequest is the body for POST /api/pool/withdraw
type WithdrawRequest struct {
	Holder    string `json:"holder"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
}

// RedeemRequest is the body for POST /api/pool/redeem
type RedeemRequest struct {
	Holder    string `json:"holder"`
	Units     int64  `json:"units"`
	Recipient string `json:"recipient"`
}

// HarvestRequest is the body for POST /api/pool/harvest
type HarvestRequest struct {
	Caller string `json:"caller"`
}

// RegisterStrategyRequest is the body for POST /api/pool/strategies
type RegisterStrategyRequest struct {
	Name  string `json:"name"`
	APYBP int64  `json:"apy_bp"`
}

// HandleStatus handles GET /api/pool/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.pool.Status())
}

// HandleBalance handles GET /api/pool/balance/{holder}
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	holder := chi.URLParam(r, "holder")

	units := h.pool.BalanceOf(holder)
	h.respond(w, http.StatusOK, map[string]interface{}{
		"holder": holder,
		"units":  units,
	})
}

// HandleDeposit handles POST /api/pool/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Holder == "" {
		http.Error(w, "holder is required", http.StatusBadRequest)
		return
	}

	units, err := h.pool.Deposit(req.Holder, req.Amount)
	if err != nil {
		h.operationError(w, "deposit", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"holder": req.Holder,
		"amount": req.Amount,
		"units":  units,
	})
}

// HandleMint handles POST /api/pool/mint
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Holder == "" {
		http.Error(w, "holder is required", http.StatusBadRequest)
		return
	}

	amount, err := h.pool.Mint(req.Holder, req.Units)
	if err != nil {
		h.operationError(w, "mint", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"holder": req.Holder,
		"units":  req.Units,
		"amount": amount,
	})
}

// HandleWithdraw handles POST /api/pool/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Holder == "" || req.Recipient == "" {
		http.Error(w, "holder and recipient are required", http.StatusBadRequest)
		return
	}

	paid, err := h.pool.Withdraw(req.Holder, req.Amount, req.Recipient)
	if err != nil {
		h.operationError(w, "withdraw", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"holder":    req.Holder,
		"recipient": req.Recipient,
		"requested": req.Amount,
		"paid":      paid,
	})
}

// HandleRedeem handles POST /api/pool/redeem
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Holder == "" || req.Recipient == "" {
		http.Error(w, "holder and recipient are required", http.StatusBadRequest)
		return
	}

	paid, err := h.pool.Redeem(req.Holder, req.Units, req.Recipient)
	if err != nil {
		h.operationError(w, "redeem", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"holder":    req.Holder,
		"recipient": req.Recipient,
		"units":     req.Units,
		"paid":      paid,
	})
}

// HandleHarvest handles POST /api/pool/harvest
func (h *Handler) HandleHarvest(w http.ResponseWriter, r *http.Request) {
	var req HarvestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		http.Error(w, "caller is required", http.StatusBadRequest)
		return
	}

	profit, err := h.pool.Harvest(req.Caller)
	if err != nil {
		h.operationError(w, "harvest", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"caller": req.Caller,
		"profit": profit,
	})
}

// HandleAllocate handles POST /api/pool/allocate - manually push the idle
// buffer into strategies
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Allocate(); err != nil {
		h.operationError(w, "allocate", err)
		return
	}
	h.respond(w, http.StatusOK, h.pool.Status())
}

// HandleRebalance handles POST /api/pool/rebalance
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Rebalance(); err != nil {
		h.operationError(w, "rebalance", err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{
		"rebalanced": true,
		"strategies": h.pool.Strategies(),
	})
}

// HandleRebalanceCheck handles GET /api/pool/rebalance/check
func (h *Handler) HandleRebalanceCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]interface{}{
		"should_rebalance": h.pool.ShouldRebalance(),
	})
}

// HandlePause handles POST /api/pool/pause
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.pool.Pause()
	h.respond(w, http.StatusOK, map[string]interface{}{"paused": true})
}

// HandleUnpause handles POST /api/pool/unpause
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.pool.Unpause()
	h.respond(w, http.StatusOK, map[string]interface{}{"paused": false})
}

// HandleEmergencyDrain handles POST /api/pool/emergency-drain
func (h *Handler) HandleEmergencyDrain(w http.ResponseWriter, r *http.Request) {
	results, err := h.pool.EmergencyDrain()
	if err != nil {
		h.operationError(w, "emergency-drain", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"status":  h.pool.Status(),
	})
}

// HandleSyncIdle handles POST /api/pool/sync-idle
func (h *Handler) HandleSyncIdle(w http.ResponseWriter, r *http.Request) {
	before, after := h.pool.SyncIdleBuffer()
	h.respond(w, http.StatusOK, map[string]interface{}{
		"before": before,
		"after":  after,
	})
}

// HandleGetStrategies handles GET /api/pool/strategies
func (h *Handler) HandleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := h.pool.Strategies()
	h.respond(w, http.StatusOK, map[string]interface{}{
		"strategies": strategies,
		"count":      len(strategies),
	})
}

// HandleRegisterStrategy handles POST /api/pool/strategies
func (h *Handler) HandleRegisterStrategy(w http.ResponseWriter, r *http.Request) {
	if h.factory == nil {
		http.Error(w, "Strategy registration not available", http.StatusNotImplemented)
		return
	}

	var req RegisterStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	s, err := h.factory(req.Name, req.APYBP)
	if err != nil {
		h.operationError(w, "register-strategy", err)
		return
	}
	if err := h.pool.AddStrategy(s); err != nil {
		h.operationError(w, "register-strategy", err)
		return
	}

	h.respond(w, http.StatusCreated, map[string]interface{}{
		"name":   req.Name,
		"apy_bp": req.APYBP,
	})
}

// HandleRemoveStrategy handles DELETE /api/pool/strategies/{name}
func (h *Handler) HandleRemoveStrategy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.pool.RemoveStrategy(name); err != nil {
		h.operationError(w, "remove-strategy", err)
		return
	}

	h.respond(w, http.StatusOK, map[string]interface{}{
		"name":    name,
		"removed": true,
	})
}

// HandleGetConfig handles GET /api/pool/config
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.pool.Config()
	acfg := h.pool.AllocatorConfig()

	h.respond(w, http.StatusOK, map[string]interface{}{
		"pool": map[string]interface{}{
			"performance_fee_bp":   cfg.PerformanceFeeBP,
			"treasury_split_bp":    cfg.TreasurySplitBP,
			"beneficiary_split_bp": cfg.BeneficiarySplitBP,
			"keeper_incentive_bp":  cfg.KeeperIncentiveBP,
			"min_harvest_profit":   cfg.MinHarvestProfit,
			"min_contribution":     cfg.MinContribution,
			"max_total_value":      cfg.MaxTotalValue,
			"allocate_threshold":   cfg.AllocateThreshold,
			"withdraw_tolerance":   cfg.WithdrawTolerance,
		},
		"allocation": map[string]interface{}{
			"rebalance_threshold_bp": acfg.RebalanceThresholdBP,
			"min_rebalance_value":    acfg.MinRebalanceValue,
			"ceiling_bp":             acfg.CeilingBP,
			"floor_bp":               acfg.FloorBP,
			"max_strategies":         acfg.MaxStrategies,
		},
	})
}

// operationError maps domain errors onto HTTP status codes.
func (h *Handler) operationError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrZeroAmount),
		errors.Is(err, domain.ErrBelowMinContribution),
		errors.Is(err, domain.ErrMaxValueExceeded),
		errors.Is(err, domain.ErrInvalidBasisPoints),
		errors.Is(err, domain.ErrInvalidFeeSplit),
		errors.Is(err, domain.ErrInsufficientShares),
		errors.Is(err, domain.ErrAssetMismatch),
		errors.Is(err, domain.ErrTooManyStrategies):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStrategyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPaused),
		errors.Is(err, domain.ErrNotPaused),
		errors.Is(err, domain.ErrStrategyExists),
		errors.Is(err, domain.ErrStrategyNotDrained),
		errors.Is(err, domain.ErrRebalanceNotNeeded),
		errors.Is(err, domain.ErrNoStrategies):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsolvent):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("operation", op).Msg("Pool operation failed")
	} else {
		h.log.Warn().Err(err).Str("operation", op).Msg("Pool operation rejected")
	}
	http.Error(w, err.Error(), status)
}

// respond wraps data in the standard response envelope.
func (h *Handler) respond(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
