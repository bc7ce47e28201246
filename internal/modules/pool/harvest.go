package pool

import (
	"fmt"
	"time"

	"coffer/internal/domain"
)

// Harvest runs a fail-safe harvest across all strategies and distributes
// fees from the realized profit.
//
// Below the minimum profit nothing further happens: whatever individual
// strategies already reinvested during their own harvest stays put and no
// fee is taken this cycle. Otherwise the caller earns the keeper incentive
// (unless registered as no-incentive), the performance fee is taken from
// the remainder, and the fee is split between ownership units minted to the
// treasury (a claim that compounds across cycles) and a liquid payment to
// the beneficiary.
func (p *Pool) Harvest(caller string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return 0, domain.ErrPaused
	}

	profit, results := p.alloc.Harvest()

	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
		}
	}
	p.log.Info().
		Int64("profit", profit).
		Int("strategies", len(results)).
		Int("failures", failures).
		Msg("Harvest cycle")

	if profit < p.cfg.MinHarvestProfit {
		p.recorder.Record("harvest_skipped", map[string]any{
			"profit":     profit,
			"min_profit": p.cfg.MinHarvestProfit,
		})
		return 0, nil
	}

	var keeperReward int64
	if !p.noIncentive[caller] {
		keeperReward = profit * p.cfg.KeeperIncentiveBP / domain.BasisPointDenominator
	}
	if keeperReward > 0 {
		if err := p.payLiquid(caller, keeperReward); err != nil {
			return 0, fmt.Errorf("keeper payout failed: %w", err)
		}
	}

	netProfit := profit - keeperReward
	performanceFee := netProfit * p.cfg.PerformanceFeeBP / domain.BasisPointDenominator
	treasuryPart := performanceFee * p.cfg.TreasurySplitBP / domain.BasisPointDenominator
	beneficiaryPart := performanceFee - treasuryPart

	var treasuryUnits int64
	if treasuryPart > 0 && p.treasury != "" {
		treasuryUnits = p.convertToShares(treasuryPart, p.totalValue())
		p.shares.Mint(p.treasury, treasuryUnits)
	}

	if beneficiaryPart > 0 && p.beneficiary != "" {
		if err := p.payLiquid(p.beneficiary, beneficiaryPart); err != nil {
			if treasuryUnits > 0 {
				_ = p.shares.Burn(p.treasury, treasuryUnits)
			}
			return 0, fmt.Errorf("beneficiary payout failed: %w", err)
		}
	}

	p.lastHarvest = time.Now()
	p.cumulativeProfit += profit

	p.recorder.Record("fee_distribution", map[string]any{
		"caller":           caller,
		"profit":           profit,
		"keeper_reward":    keeperReward,
		"performance_fee":  performanceFee,
		"treasury_amount":  treasuryPart,
		"treasury_units":   treasuryUnits,
		"beneficiary_paid": beneficiaryPart,
	})
	return profit, nil
}

// payLiquid pays an amount in base asset, preferring the idle buffer and
// pulling any shortfall from the allocator. A payout that fails leaves the
// books consistent: the debit is undone, and anything already pulled from
// the allocator stays in the buffer until the next allocation.
func (p *Pool) payLiquid(recipient string, amount int64) error {
	fromIdle := amount
	if p.idle < fromIdle {
		fromIdle = p.idle
	}
	fromAlloc := amount - fromIdle

	if fromAlloc > 0 {
		got, err := p.alloc.Withdraw(fromAlloc)
		if err != nil {
			return err
		}
		p.cash += got
		p.idle = p.cash
	}

	pay := amount
	if p.cash < pay {
		pay = p.cash
	}
	p.cash -= pay
	p.idle = p.cash

	if err := p.pay(recipient, pay); err != nil {
		// The payment never left the pool.
		p.cash += pay
		p.idle = p.cash
		return err
	}
	return nil
}

// LastHarvest returns the time of the last fee-distributing harvest.
func (p *Pool) LastHarvest() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHarvest
}

// CumulativeProfit returns total profit realized across all harvests.
func (p *Pool) CumulativeProfit() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cumulativeProfit
}
