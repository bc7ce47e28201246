package pool

import (
	"fmt"

	"coffer/internal/domain"
)

// Default pool configuration.
const (
	DefaultPerformanceFeeBP  = 1_000 // 10% of net profit
	DefaultTreasurySplitBP   = 5_000 // half the fee compounds to treasury
	DefaultKeeperIncentiveBP = 100   // 1% of gross profit
	DefaultMinHarvestProfit  = 100
	DefaultMinContribution   = 100
	DefaultAllocateThreshold = 10_000
	DefaultWithdrawTolerance = 10
)

// Config holds the pool's tunable parameters. All rates are basis points,
// all amounts are integer base-asset units.
type Config struct {
	PerformanceFeeBP   int64 // taken from net harvest profit
	TreasurySplitBP    int64 // fee fraction minted as shares to treasury
	BeneficiarySplitBP int64 // fee fraction paid liquid to beneficiary
	KeeperIncentiveBP  int64 // paid from gross profit to the harvest caller
	MinHarvestProfit   int64 // below this, harvest distributes nothing
	MinContribution    int64 // dust deposits rejected
	MaxTotalValue      int64 // 0 disables the cap
	AllocateThreshold  int64 // idle buffer level that triggers allocation
	WithdrawTolerance  int64 // max acceptable withdrawal shortfall
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		PerformanceFeeBP:   DefaultPerformanceFeeBP,
		TreasurySplitBP:    DefaultTreasurySplitBP,
		BeneficiarySplitBP: domain.BasisPointDenominator - DefaultTreasurySplitBP,
		KeeperIncentiveBP:  DefaultKeeperIncentiveBP,
		MinHarvestProfit:   DefaultMinHarvestProfit,
		MinContribution:    DefaultMinContribution,
		AllocateThreshold:  DefaultAllocateThreshold,
		WithdrawTolerance:  DefaultWithdrawTolerance,
	}
}

// Validate checks config bounds. The two fee-split fractions must sum to
// exactly 10,000 bp.
func (c Config) Validate() error {
	for name, bp := range map[string]int64{
		"performance_fee":   c.PerformanceFeeBP,
		"keeper_incentive":  c.KeeperIncentiveBP,
		"treasury_split":    c.TreasurySplitBP,
		"beneficiary_split": c.BeneficiarySplitBP,
	} {
		if bp < 0 || bp > domain.BasisPointDenominator {
			return fmt.Errorf("%s: %w", name, domain.ErrInvalidBasisPoints)
		}
	}
	if c.TreasurySplitBP+c.BeneficiarySplitBP != domain.BasisPointDenominator {
		return domain.ErrInvalidFeeSplit
	}
	if c.MinHarvestProfit < 0 || c.MinContribution < 0 || c.MaxTotalValue < 0 ||
		c.AllocateThreshold < 0 || c.WithdrawTolerance < 0 {
		return fmt.Errorf("negative amount in pool config")
	}
	return nil
}
