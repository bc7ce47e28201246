package pool

import (
	"time"

	"coffer/internal/domain"
	"coffer/internal/modules/allocator"
)

// Admin surface. Every setter validates before mutating and runs under the
// pool mutex so configuration changes never interleave with operations.

// SetTreasury sets the treasury role identity.
func (p *Pool) SetTreasury(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.treasury = id
	p.recorder.Record("config_change", map[string]any{"key": "treasury", "value": id})
}

// SetBeneficiary sets the beneficiary role identity.
func (p *Pool) SetBeneficiary(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.beneficiary = id
	p.recorder.Record("config_change", map[string]any{"key": "beneficiary", "value": id})
}

// SetNoIncentiveKeeper adds or removes a keeper identity from the
// no-incentive registry. Registered keepers harvest without earning the
// keeper reward.
func (p *Pool) SetNoIncentiveKeeper(id string, noIncentive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if noIncentive {
		p.noIncentive[id] = true
	} else {
		delete(p.noIncentive, id)
	}
	p.recorder.Record("config_change", map[string]any{"key": "no_incentive_keeper", "keeper": id, "value": noIncentive})
}

// SetPerformanceFee sets the performance fee rate in basis points.
func (p *Pool) SetPerformanceFee(bp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bp < 0 || bp > domain.BasisPointDenominator {
		return domain.ErrInvalidBasisPoints
	}
	p.cfg.PerformanceFeeBP = bp
	p.recorder.Record("config_change", map[string]any{"key": "performance_fee_bp", "value": bp})
	return nil
}

// SetFeeSplit sets how the performance fee divides between the treasury
// (compounding units) and the beneficiary (liquid). The two fractions must
// sum to exactly 10,000 bp.
func (p *Pool) SetFeeSplit(treasuryBP, beneficiaryBP int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if treasuryBP < 0 || beneficiaryBP < 0 || treasuryBP+beneficiaryBP != domain.BasisPointDenominator {
		return domain.ErrInvalidFeeSplit
	}
	p.cfg.TreasurySplitBP = treasuryBP
	p.cfg.BeneficiarySplitBP = beneficiaryBP
	p.recorder.Record("config_change", map[string]any{"key": "fee_split", "treasury_bp": treasuryBP, "beneficiary_bp": beneficiaryBP})
	return nil
}

// SetKeeperIncentive sets the keeper incentive rate in basis points.
func (p *Pool) SetKeeperIncentive(bp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bp < 0 || bp > domain.BasisPointDenominator {
		return domain.ErrInvalidBasisPoints
	}
	p.cfg.KeeperIncentiveBP = bp
	p.recorder.Record("config_change", map[string]any{"key": "keeper_incentive_bp", "value": bp})
	return nil
}

// SetMinHarvestProfit sets the minimum profit that triggers distribution.
func (p *Pool) SetMinHarvestProfit(v int64) error {
	return p.setAmount("min_harvest_profit", v, func(c *Config) { c.MinHarvestProfit = v })
}

// SetMinContribution sets the minimum deposit size.
func (p *Pool) SetMinContribution(v int64) error {
	return p.setAmount("min_contribution", v, func(c *Config) { c.MinContribution = v })
}

// SetMaxTotalValue sets the pool value cap. Zero disables the cap.
func (p *Pool) SetMaxTotalValue(v int64) error {
	return p.setAmount("max_total_value", v, func(c *Config) { c.MaxTotalValue = v })
}

// SetAllocateThreshold sets the idle buffer level that triggers allocation.
func (p *Pool) SetAllocateThreshold(v int64) error {
	return p.setAmount("allocate_threshold", v, func(c *Config) { c.AllocateThreshold = v })
}

// SetWithdrawTolerance sets the accepted withdrawal rounding shortfall.
func (p *Pool) SetWithdrawTolerance(v int64) error {
	return p.setAmount("withdraw_tolerance", v, func(c *Config) { c.WithdrawTolerance = v })
}

func (p *Pool) setAmount(key string, v int64, apply func(*Config)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v < 0 {
		return domain.ErrZeroAmount
	}
	apply(&p.cfg)
	p.recorder.Record("config_change", map[string]any{"key": key, "value": v})
	return nil
}

// Config returns a copy of the current pool configuration.
func (p *Pool) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Allocator wrappers. The pool is the single writer, so allocator mutations
// go through here to stay serialized with pool operations.

// AddStrategy registers a strategy with the allocator.
func (p *Pool) AddStrategy(s domain.Strategy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.AddStrategy(s)
}

// RemoveStrategy deregisters a drained strategy.
func (p *Pool) RemoveStrategy(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.RemoveStrategy(name)
}

// Rebalance converges strategy balances toward target weights.
func (p *Pool) Rebalance() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.Rebalance()
}

// ShouldRebalance reports whether rebalance conditions are met.
func (p *Pool) ShouldRebalance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.ShouldRebalance()
}

// Allocate pushes the idle buffer into strategies regardless of the
// threshold. Manual counterpart of the deposit-triggered allocation.
func (p *Pool) Allocate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return domain.ErrPaused
	}
	if p.idle == 0 {
		return domain.ErrZeroAmount
	}

	amount := p.idle
	p.idle = 0
	p.cash -= amount
	if err := p.alloc.Allocate(amount); err != nil {
		p.idle = amount
		p.cash += amount
		return err
	}
	return nil
}

// Strategies returns the allocator's registry snapshot.
func (p *Pool) Strategies() []allocator.StrategyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.Strategies()
}

// AllocatorConfig returns the allocator configuration.
func (p *Pool) AllocatorConfig() allocator.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alloc.Config()
}

// SetRebalanceThreshold forwards to the allocator under the pool lock.
func (p *Pool) SetRebalanceThreshold(bp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.alloc.SetRebalanceThreshold(bp); err != nil {
		return err
	}
	p.recorder.Record("config_change", map[string]any{"key": "rebalance_threshold_bp", "value": bp})
	return nil
}

// SetMinRebalanceValue forwards to the allocator under the pool lock.
func (p *Pool) SetMinRebalanceValue(v int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.alloc.SetMinRebalanceValue(v); err != nil {
		return err
	}
	p.recorder.Record("config_change", map[string]any{"key": "min_rebalance_value", "value": v})
	return nil
}

// SetAllocationCeiling forwards to the allocator under the pool lock.
func (p *Pool) SetAllocationCeiling(bp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.alloc.SetCeiling(bp); err != nil {
		return err
	}
	p.recorder.Record("config_change", map[string]any{"key": "allocation_ceiling_bp", "value": bp})
	return nil
}

// SetAllocationFloor forwards to the allocator under the pool lock.
func (p *Pool) SetAllocationFloor(bp int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.alloc.SetFloor(bp); err != nil {
		return err
	}
	p.recorder.Record("config_change", map[string]any{"key": "allocation_floor_bp", "value": bp})
	return nil
}

// Status is the pool read-model for the API and snapshots.
type Status struct {
	Asset            string    `json:"asset"`
	TotalValue       int64     `json:"total_value"`
	Idle             int64     `json:"idle"`
	Cash             int64     `json:"cash"`
	AllocatedValue   int64     `json:"allocated_value"`
	TotalShares      int64     `json:"total_shares"`
	Holders          int       `json:"holders"`
	PricePerShare    float64   `json:"price_per_share"`
	Paused           bool      `json:"paused"`
	StrategyCount    int       `json:"strategy_count"`
	LastHarvest      time.Time `json:"last_harvest"`
	CumulativeProfit int64     `json:"cumulative_profit"`
}

// Status returns a consistent snapshot of the pool's state.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	allocated := p.alloc.TotalValue()
	total := p.idle + allocated
	pps := 1.0
	if supply := p.shares.Total(); supply > 0 {
		pps = float64(total) / float64(supply)
	}
	return Status{
		Asset:            p.asset,
		TotalValue:       total,
		Idle:             p.idle,
		Cash:             p.cash,
		AllocatedValue:   allocated,
		TotalShares:      p.shares.Total(),
		Holders:          p.shares.Holders(),
		PricePerShare:    pps,
		Paused:           p.paused,
		StrategyCount:    p.alloc.Count(),
		LastHarvest:      p.lastHarvest,
		CumulativeProfit: p.cumulativeProfit,
	}
}

// BalanceOf returns a holder's ownership units.
func (p *Pool) BalanceOf(holder string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.BalanceOf(holder)
}

// TotalShares returns the ownership units outstanding.
func (p *Pool) TotalShares() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares.Total()
}
