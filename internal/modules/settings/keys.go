package settings

import (
	"fmt"

	"coffer/internal/domain"
	"coffer/internal/modules/pool"
)

// Setting keys for pool and allocation parameters. Stored values override
// the compiled defaults at startup and whenever ApplyToPool runs.
const (
	KeyPerformanceFeeBP     = "performance_fee_bp"
	KeyTreasurySplitBP      = "treasury_split_bp"
	KeyKeeperIncentiveBP    = "keeper_incentive_bp"
	KeyMinHarvestProfit     = "min_harvest_profit"
	KeyMinContribution      = "min_contribution"
	KeyMaxTotalValue        = "max_total_value"
	KeyAllocateThreshold    = "allocate_threshold"
	KeyWithdrawTolerance    = "withdraw_tolerance"
	KeyRebalanceThresholdBP = "rebalance_threshold_bp"
	KeyMinRebalanceValue    = "min_rebalance_value"
	KeyAllocationCeilingBP  = "allocation_ceiling_bp"
	KeyAllocationFloorBP    = "allocation_floor_bp"
	KeyTreasuryAccount      = "treasury_account"
	KeyBeneficiaryAccount   = "beneficiary_account"
)

// ApplyToPool pushes stored settings into the pool, using its current
// configuration for any key that isn't set. The fee split is applied as a
// pair so the sum-to-100% rule is checked once, not per key.
func ApplyToPool(repo *Repository, p *pool.Pool) error {
	cfg := p.Config()
	acfg := p.AllocatorConfig()

	apply := []struct {
		key     string
		current int64
		set     func(int64) error
	}{
		{KeyPerformanceFeeBP, cfg.PerformanceFeeBP, p.SetPerformanceFee},
		{KeyKeeperIncentiveBP, cfg.KeeperIncentiveBP, p.SetKeeperIncentive},
		{KeyMinHarvestProfit, cfg.MinHarvestProfit, p.SetMinHarvestProfit},
		{KeyMinContribution, cfg.MinContribution, p.SetMinContribution},
		{KeyMaxTotalValue, cfg.MaxTotalValue, p.SetMaxTotalValue},
		{KeyAllocateThreshold, cfg.AllocateThreshold, p.SetAllocateThreshold},
		{KeyWithdrawTolerance, cfg.WithdrawTolerance, p.SetWithdrawTolerance},
		{KeyRebalanceThresholdBP, acfg.RebalanceThresholdBP, p.SetRebalanceThreshold},
		{KeyMinRebalanceValue, acfg.MinRebalanceValue, p.SetMinRebalanceValue},
		{KeyAllocationCeilingBP, acfg.CeilingBP, p.SetAllocationCeiling},
		{KeyAllocationFloorBP, acfg.FloorBP, p.SetAllocationFloor},
	}
	for _, a := range apply {
		v, err := repo.GetInt64(a.key, a.current)
		if err != nil {
			return fmt.Errorf("failed to read setting %s: %w", a.key, err)
		}
		if v == a.current {
			continue
		}
		if err := a.set(v); err != nil {
			return fmt.Errorf("failed to apply setting %s=%d: %w", a.key, v, err)
		}
	}

	treasuryBP, err := repo.GetInt64(KeyTreasurySplitBP, cfg.TreasurySplitBP)
	if err != nil {
		return fmt.Errorf("failed to read setting %s: %w", KeyTreasurySplitBP, err)
	}
	if treasuryBP != cfg.TreasurySplitBP {
		if err := p.SetFeeSplit(treasuryBP, domain.BasisPointDenominator-treasuryBP); err != nil {
			return fmt.Errorf("failed to apply fee split %d: %w", treasuryBP, err)
		}
	}

	if treasury, err := repo.GetString(KeyTreasuryAccount, ""); err != nil {
		return err
	} else if treasury != "" {
		p.SetTreasury(treasury)
	}
	if beneficiary, err := repo.GetString(KeyBeneficiaryAccount, ""); err != nil {
		return err
	} else if beneficiary != "" {
		p.SetBeneficiary(beneficiary)
	}

	return nil
}
