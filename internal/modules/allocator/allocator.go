// Package allocator distributes a single pool of capital across registered
// yield strategies, weighted by each strategy's reported yield score. It owns
// target computation, proportional withdrawal, fail-safe batch harvesting,
// and rebalancing.
//
// The allocator is not safe for concurrent use; the pool is the single
// writer and serializes every operation before delegating here.
package allocator

import (
	"fmt"

	"github.com/rs/zerolog"

	"coffer/internal/domain"
)

// Default allocation configuration.
const (
	DefaultRebalanceThresholdBP = 500 // 5% yield spread
	DefaultMinRebalanceValue    = 10_000
	DefaultCeilingBP            = 5_000 // 50% per strategy
	DefaultFloorBP              = 500   // 5% per strategy
	DefaultMaxStrategies        = 10
)

// Config holds allocation and rebalance tuning.
type Config struct {
	RebalanceThresholdBP int64 // min max-min yield spread to rebalance, bp
	MinRebalanceValue    int64 // min total managed value to rebalance
	CeilingBP            int64 // per-strategy allocation cap, bp
	FloorBP              int64 // per-strategy allocation floor, bp
	MaxStrategies        int   // bounds iteration cost
}

// DefaultConfig returns the default allocator configuration.
func DefaultConfig() Config {
	return Config{
		RebalanceThresholdBP: DefaultRebalanceThresholdBP,
		MinRebalanceValue:    DefaultMinRebalanceValue,
		CeilingBP:            DefaultCeilingBP,
		FloorBP:              DefaultFloorBP,
		MaxStrategies:        DefaultMaxStrategies,
	}
}

// Validate checks config bounds.
func (c Config) Validate() error {
	if c.CeilingBP <= 0 || c.CeilingBP > domain.BasisPointDenominator {
		return fmt.Errorf("ceiling: %w", domain.ErrInvalidBasisPoints)
	}
	if c.FloorBP < 0 || c.FloorBP >= c.CeilingBP {
		return fmt.Errorf("floor: %w", domain.ErrInvalidBasisPoints)
	}
	if c.RebalanceThresholdBP < 0 {
		return fmt.Errorf("rebalance threshold: %w", domain.ErrInvalidBasisPoints)
	}
	if c.MaxStrategies <= 0 {
		return fmt.Errorf("max strategies must be positive")
	}
	return nil
}

// Allocator manages the registry of strategies and moves capital between
// them. Strategies are kept in registration order; the order is observable
// in rebalance transfer sequences.
type Allocator struct {
	asset      string
	cfg        Config
	strategies []domain.Strategy
	targets    []int64 // parallel to strategies, basis points
	recorder   domain.AuditRecorder
	log        zerolog.Logger
}

// New creates an allocator for the given base asset.
func New(asset string, cfg Config, recorder domain.AuditRecorder, log zerolog.Logger) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = domain.NopRecorder{}
	}
	return &Allocator{
		asset:    asset,
		cfg:      cfg,
		recorder: recorder,
		log:      log.With().Str("service", "allocator").Logger(),
	}, nil
}

// Config returns the current configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// SetRebalanceThreshold updates the divergence threshold in basis points.
func (a *Allocator) SetRebalanceThreshold(bp int64) error {
	if bp < 0 {
		return domain.ErrInvalidBasisPoints
	}
	a.cfg.RebalanceThresholdBP = bp
	return nil
}

// SetMinRebalanceValue updates the minimum total value required to rebalance.
func (a *Allocator) SetMinRebalanceValue(v int64) error {
	if v < 0 {
		return domain.ErrZeroAmount
	}
	a.cfg.MinRebalanceValue = v
	return nil
}

// SetCeiling updates the per-strategy allocation cap in basis points.
func (a *Allocator) SetCeiling(bp int64) error {
	if bp <= 0 || bp > domain.BasisPointDenominator || bp <= a.cfg.FloorBP {
		return domain.ErrInvalidBasisPoints
	}
	a.cfg.CeilingBP = bp
	return nil
}

// SetFloor updates the per-strategy allocation floor in basis points.
func (a *Allocator) SetFloor(bp int64) error {
	if bp < 0 || bp >= a.cfg.CeilingBP {
		return domain.ErrInvalidBasisPoints
	}
	a.cfg.FloorBP = bp
	return nil
}

// Count returns the number of registered strategies.
func (a *Allocator) Count() int {
	return len(a.strategies)
}

// TotalValue returns the sum of all strategies' reported managed value.
func (a *Allocator) TotalValue() int64 {
	var total int64
	for _, s := range a.strategies {
		total += s.TotalValue()
	}
	return total
}

// StrategyStatus is a read-model row for one registered strategy.
type StrategyStatus struct {
	Name     string `json:"name"`
	Asset    string `json:"asset"`
	Value    int64  `json:"value"`
	APYBP    int64  `json:"apy_bp"`
	TargetBP int64  `json:"target_bp"`
}

// Strategies returns a snapshot of every registered strategy with its
// current stored target weight.
func (a *Allocator) Strategies() []StrategyStatus {
	out := make([]StrategyStatus, len(a.strategies))
	for i, s := range a.strategies {
		out[i] = StrategyStatus{
			Name:     s.Name(),
			Asset:    s.Asset(),
			Value:    s.TotalValue(),
			APYBP:    s.APY(),
			TargetBP: a.targets[i],
		}
	}
	return out
}

// AddStrategy registers a new strategy and recomputes target weights.
func (a *Allocator) AddStrategy(s domain.Strategy) error {
	if len(a.strategies) >= a.cfg.MaxStrategies {
		return domain.ErrTooManyStrategies
	}
	if s.Asset() != a.asset {
		return fmt.Errorf("%w: strategy %s holds %s, pool holds %s",
			domain.ErrAssetMismatch, s.Name(), s.Asset(), a.asset)
	}
	for _, existing := range a.strategies {
		if existing.Name() == s.Name() {
			return fmt.Errorf("%w: %s", domain.ErrStrategyExists, s.Name())
		}
	}

	a.strategies = append(a.strategies, s)
	a.recomputeTargets()

	a.log.Info().Str("strategy", s.Name()).Int("count", len(a.strategies)).Msg("Strategy registered")
	a.recorder.Record("strategy_added", map[string]any{
		"strategy": s.Name(),
		"count":    len(a.strategies),
	})
	return nil
}

// RemoveStrategy deregisters a drained strategy. A strategy that still
// reports non-zero managed value must be drained first.
func (a *Allocator) RemoveStrategy(name string) error {
	idx := -1
	for i, s := range a.strategies {
		if s.Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrStrategyNotFound, name)
	}
	if v := a.strategies[idx].TotalValue(); v != 0 {
		return fmt.Errorf("%w: %s reports %d", domain.ErrStrategyNotDrained, name, v)
	}

	// Swap with last and truncate.
	last := len(a.strategies) - 1
	a.strategies[idx] = a.strategies[last]
	a.strategies = a.strategies[:last]
	a.recomputeTargets()

	a.log.Info().Str("strategy", name).Int("count", len(a.strategies)).Msg("Strategy removed")
	a.recorder.Record("strategy_removed", map[string]any{
		"strategy": name,
		"count":    len(a.strategies),
	})
	return nil
}

// recomputeTargets overwrites the stored target table from current scores.
// Targets are never read stale: every operation that needs them calls this
// first.
func (a *Allocator) recomputeTargets() {
	scores := make([]int64, len(a.strategies))
	for i, s := range a.strategies {
		scores[i] = s.APY()
	}
	a.targets = ComputeTargets(scores, a.cfg.CeilingBP, a.cfg.FloorBP)
}

// Allocate distributes amount across strategies proportionally to freshly
// computed target weights. The final non-zero target receives the integer
// division dust so the entire amount lands in strategies.
//
// A deposit failure aborts the operation; deposits already made are unwound
// so no partial allocation is retained.
func (a *Allocator) Allocate(amount int64) error {
	if amount <= 0 {
		return domain.ErrZeroAmount
	}
	if len(a.strategies) == 0 {
		return domain.ErrNoStrategies
	}

	a.recomputeTargets()

	last := -1
	for i, t := range a.targets {
		if t > 0 {
			last = i
		}
	}
	if last < 0 {
		return domain.ErrNoStrategies
	}

	remaining := amount
	var placed []placement
	for i, s := range a.strategies {
		t := a.targets[i]
		if t == 0 {
			continue
		}
		share := amount * t / domain.BasisPointDenominator
		if i == last {
			share = remaining
		}
		if share == 0 {
			continue
		}
		if err := s.Deposit(share); err != nil {
			a.unwind(placed)
			return fmt.Errorf("deposit into %s failed: %w", s.Name(), err)
		}
		remaining -= share
		placed = append(placed, placement{idx: i, amount: share})

		a.log.Debug().Str("strategy", s.Name()).Int64("amount", share).Int64("target_bp", t).Msg("Allocated")
		a.recorder.Record("allocation", map[string]any{
			"strategy":  s.Name(),
			"amount":    share,
			"target_bp": t,
		})
	}

	return nil
}

type placement struct {
	idx    int
	amount int64
}

// unwind reverses deposits made earlier in a failed operation. Failures
// here are logged loudly; at that point the registry and the backend
// disagree and manual recovery is needed.
func (a *Allocator) unwind(placed []placement) {
	for _, p := range placed {
		s := a.strategies[p.idx]
		got, err := s.Withdraw(p.amount)
		if err != nil || got < p.amount {
			a.log.Error().
				Err(err).
				Str("strategy", s.Name()).
				Int64("requested", p.amount).
				Int64("recovered", got).
				Msg("Failed to unwind deposit after aborted allocation")
		}
	}
}

// Withdraw pulls amount out of the strategies proportionally to their
// current managed value, not to target weights: this preserves the existing
// mix and avoids a target recomputation. Strategy values are snapshotted
// once up front and used throughout, so mid-loop yield accrual cannot skew
// the distribution.
//
// Returns the total actually withdrawn, which may be slightly less than
// requested because each strategy may round down internally. A strategy
// failure aborts the whole call; amounts already withdrawn are re-deposited
// so no partial withdrawal is retained.
func (a *Allocator) Withdraw(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrZeroAmount
	}

	values := make([]int64, len(a.strategies))
	var total int64
	for i, s := range a.strategies {
		values[i] = s.TotalValue()
		total += values[i]
	}
	if total == 0 {
		return 0, nil
	}
	if amount > total {
		amount = total
	}

	var withdrawn int64
	var pulled []placement
	for i, s := range a.strategies {
		if values[i] == 0 {
			continue
		}
		want := amount * values[i] / total
		if want == 0 {
			continue
		}
		got, err := s.Withdraw(want)
		if err != nil {
			a.redeposit(pulled)
			return 0, fmt.Errorf("withdraw from %s failed: %w", s.Name(), err)
		}
		withdrawn += got
		pulled = append(pulled, placement{idx: i, amount: got})

		a.recorder.Record("withdrawal", map[string]any{
			"strategy":  s.Name(),
			"requested": want,
			"actual":    got,
		})
	}

	return withdrawn, nil
}

// redeposit returns withdrawn funds to their strategies after an aborted
// proportional withdrawal.
func (a *Allocator) redeposit(pulled []placement) {
	for _, p := range pulled {
		s := a.strategies[p.idx]
		if err := s.Deposit(p.amount); err != nil {
			a.log.Error().
				Err(err).
				Str("strategy", s.Name()).
				Int64("amount", p.amount).
				Msg("Failed to re-deposit after aborted withdrawal")
		}
	}
}

// HarvestResult reports the outcome of one strategy's harvest.
type HarvestResult struct {
	Strategy string
	Profit   int64
	Err      error
}

// Harvest invokes every strategy's harvest independently with fail-safe
// batch semantics: one strategy's failure is recorded and skipped, never
// letting it block the others. Returns the sum of successful profits.
func (a *Allocator) Harvest() (int64, []HarvestResult) {
	results := make([]HarvestResult, 0, len(a.strategies))
	var total int64

	for _, s := range a.strategies {
		profit, err := s.Harvest()
		if err != nil {
			a.log.Warn().Err(err).Str("strategy", s.Name()).Msg("Harvest failed, skipping strategy")
			a.recorder.Record("harvest_failure", map[string]any{
				"strategy": s.Name(),
				"reason":   err.Error(),
			})
			results = append(results, HarvestResult{Strategy: s.Name(), Err: err})
			continue
		}
		total += profit
		a.recorder.Record("harvest_success", map[string]any{
			"strategy": s.Name(),
			"profit":   profit,
		})
		results = append(results, HarvestResult{Strategy: s.Name(), Profit: profit})
	}

	return total, results
}

// ShouldRebalance reports whether the yield spread across strategies
// justifies moving capital. False with fewer than two strategies or below
// the minimum managed value.
func (a *Allocator) ShouldRebalance() bool {
	if len(a.strategies) < 2 {
		return false
	}
	if a.TotalValue() < a.cfg.MinRebalanceValue {
		return false
	}

	minScore := a.strategies[0].APY()
	maxScore := minScore
	for _, s := range a.strategies[1:] {
		score := s.APY()
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
	}
	return maxScore-minScore >= a.cfg.RebalanceThresholdBP
}
