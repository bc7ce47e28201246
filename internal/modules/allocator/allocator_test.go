package allocator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffer/internal/domain"
	"coffer/internal/modules/strategies"
)

// captureRecorder collects audit records for order assertions.
type captureRecorder struct {
	ops    []string
	fields []map[string]any
}

func (c *captureRecorder) Record(op string, fields map[string]any) {
	c.ops = append(c.ops, op)
	c.fields = append(c.fields, fields)
}

func newTestAllocator(t *testing.T, cfg Config, sims ...*strategies.Sim) (*Allocator, *captureRecorder) {
	t.Helper()
	rec := &captureRecorder{}
	a, err := New("USDC", cfg, rec, zerolog.Nop())
	require.NoError(t, err)
	for _, s := range sims {
		require.NoError(t, a.AddStrategy(s))
	}
	return a, rec
}

func testConfig() Config {
	return Config{
		RebalanceThresholdBP: 500,
		MinRebalanceValue:    100,
		CeilingBP:            5000,
		FloorBP:              500,
		MaxStrategies:        10,
	}
}

func TestAllocate_EqualScoresSplitEvenly(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)

	require.NoError(t, a.Allocate(100))

	assert.Equal(t, int64(50), s1.TotalValue())
	assert.Equal(t, int64(50), s2.TotalValue())
	assert.Equal(t, int64(100), a.TotalValue())
}

func TestAllocate_ProportionalSplit(t *testing.T) {
	// 300bp vs 600bp yields targets 3333/6667; the last non-zero target
	// takes the integer dust so the full amount lands.
	s1 := strategies.NewSim("aave", "USDC", 300)
	s2 := strategies.NewSim("compound", "USDC", 600)
	cfg := testConfig()
	cfg.CeilingBP = 8000
	cfg.FloorBP = 1000
	a, _ := newTestAllocator(t, cfg, s1, s2)

	require.NoError(t, a.Allocate(100))

	assert.Equal(t, int64(33), s1.TotalValue())
	assert.Equal(t, int64(67), s2.TotalValue())
}

func TestAllocate_Validation(t *testing.T) {
	a, _ := newTestAllocator(t, testConfig())
	assert.ErrorIs(t, a.Allocate(0), domain.ErrZeroAmount)
	assert.ErrorIs(t, a.Allocate(100), domain.ErrNoStrategies)
}

func TestAllocate_DepositFailureUnwinds(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	s2.FailDeposit = true
	a, _ := newTestAllocator(t, testConfig(), s1, s2)

	err := a.Allocate(100)
	require.Error(t, err)

	// The deposit into s1 succeeded first and must be unwound.
	assert.Equal(t, int64(0), s1.TotalValue())
	assert.Equal(t, int64(0), a.TotalValue())
}

func TestWithdraw_ProportionalToCurrentValue(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)

	require.NoError(t, s1.Deposit(300))
	require.NoError(t, s2.Deposit(100))

	// Proportional to balance, not target weight: 3/4 from s1.
	got, err := a.Withdraw(200)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
	assert.Equal(t, int64(150), s1.TotalValue())
	assert.Equal(t, int64(50), s2.TotalValue())
}

func TestWithdraw_EmptyAllocatorIsNoop(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1)

	got, err := a.Withdraw(100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestWithdraw_FailureRestoresStrategies(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)

	require.NoError(t, s1.Deposit(100))
	require.NoError(t, s2.Deposit(100))
	s2.FailWithdraw = true

	got, err := a.Withdraw(100)
	require.Error(t, err)
	assert.Equal(t, int64(0), got)

	// s1's partial withdrawal is re-deposited: no partial transfer remains.
	assert.Equal(t, int64(100), s1.TotalValue())
	assert.Equal(t, int64(100), s2.TotalValue())
}

func TestHarvest_FailSafeBatch(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	s3 := strategies.NewSim("curve", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2, s3)

	s1.Accrue(10)
	s2.Accrue(20)
	s3.Accrue(30)
	s2.FailHarvest = true

	total, results := a.Harvest()

	// One failing strategy contributes zero and does not block the rest.
	assert.Equal(t, int64(40), total)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, int64(10), results[0].Profit)
	assert.Equal(t, int64(30), results[2].Profit)
}

func TestShouldRebalance_ThresholdBoundary(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 1000)
	s2 := strategies.NewSim("compound", "USDC", 1499)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)
	require.NoError(t, s1.Deposit(500))

	// Spread one below the threshold: no rebalance.
	assert.False(t, a.ShouldRebalance())

	// Spread exactly at the threshold: rebalance.
	s2.SetAPY(1500)
	assert.True(t, a.ShouldRebalance())

	// And above.
	s2.SetAPY(2000)
	assert.True(t, a.ShouldRebalance())
}

func TestShouldRebalance_Preconditions(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 1000)
	a, _ := newTestAllocator(t, testConfig(), s1)
	assert.False(t, a.ShouldRebalance(), "single strategy never rebalances")

	s2 := strategies.NewSim("compound", "USDC", 9000)
	require.NoError(t, a.AddStrategy(s2))
	assert.False(t, a.ShouldRebalance(), "below minimum total value")

	require.NoError(t, s1.Deposit(500))
	assert.True(t, a.ShouldRebalance())
}

func TestRebalance_GreedyInRegistrationOrder(t *testing.T) {
	// The excess→need matching walks both lists in registration order and
	// is deliberately not optimized for transfer count.
	s1 := strategies.NewSim("aave", "USDC", 200)
	s2 := strategies.NewSim("compound", "USDC", 900)
	s3 := strategies.NewSim("curve", "USDC", 900)
	a, rec := newTestAllocator(t, testConfig(), s1, s2, s3)

	// Scores 200/900/900 → targets exactly 1000/4500/4500 bp.
	require.NoError(t, s1.Deposit(1000))

	require.NoError(t, a.Rebalance())

	assert.Equal(t, int64(100), s1.TotalValue())
	assert.Equal(t, int64(450), s2.TotalValue())
	assert.Equal(t, int64(450), s3.TotalValue())

	var transfers []map[string]any
	for i, op := range rec.ops {
		if op == "rebalance_transfer" {
			transfers = append(transfers, rec.fields[i])
		}
	}
	require.Len(t, transfers, 2)
	assert.Equal(t, "compound", transfers[0]["to"], "first needy strategy in registration order funded first")
	assert.Equal(t, "curve", transfers[1]["to"])
}

func TestRebalance_DepositFailureReversesCompletedTransfers(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 200)
	s2 := strategies.NewSim("compound", "USDC", 900)
	s3 := strategies.NewSim("curve", "USDC", 900)
	s3.FailDeposit = true
	a, rec := newTestAllocator(t, testConfig(), s1, s2, s3)

	require.NoError(t, s1.Deposit(1000))

	// The transfer into compound goes through before curve rejects its
	// deposit; a failed rebalance must put everything back.
	err := a.Rebalance()
	require.Error(t, err)

	assert.Equal(t, int64(1000), s1.TotalValue())
	assert.Equal(t, int64(0), s2.TotalValue())
	assert.Equal(t, int64(0), s3.TotalValue())
	assert.Equal(t, int64(1000), a.TotalValue())

	var unwound []map[string]any
	for i, op := range rec.ops {
		if op == "rebalance_unwound" {
			unwound = append(unwound, rec.fields[i])
		}
	}
	require.Len(t, unwound, 1)
	assert.Equal(t, "compound", unwound[0]["from"])
	assert.Equal(t, "aave", unwound[0]["to"])
}

func TestRebalance_NotNeeded(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)
	require.NoError(t, s1.Deposit(1000))

	assert.ErrorIs(t, a.Rebalance(), domain.ErrRebalanceNotNeeded)
}

func TestAddStrategy_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxStrategies = 2
	a, _ := newTestAllocator(t, cfg)

	require.NoError(t, a.AddStrategy(strategies.NewSim("aave", "USDC", 500)))

	err := a.AddStrategy(strategies.NewSim("aave", "USDC", 500))
	assert.ErrorIs(t, err, domain.ErrStrategyExists)

	err = a.AddStrategy(strategies.NewSim("maker", "DAI", 500))
	assert.ErrorIs(t, err, domain.ErrAssetMismatch)

	require.NoError(t, a.AddStrategy(strategies.NewSim("compound", "USDC", 500)))
	err = a.AddStrategy(strategies.NewSim("curve", "USDC", 500))
	assert.ErrorIs(t, err, domain.ErrTooManyStrategies)
}

func TestRemoveStrategy(t *testing.T) {
	s1 := strategies.NewSim("aave", "USDC", 500)
	s2 := strategies.NewSim("compound", "USDC", 500)
	a, _ := newTestAllocator(t, testConfig(), s1, s2)

	require.NoError(t, s1.Deposit(100))
	assert.ErrorIs(t, a.RemoveStrategy("aave"), domain.ErrStrategyNotDrained)
	assert.ErrorIs(t, a.RemoveStrategy("missing"), domain.ErrStrategyNotFound)

	_, err := s1.Withdraw(100)
	require.NoError(t, err)
	require.NoError(t, a.RemoveStrategy("aave"))
	assert.Equal(t, 1, a.Count())

	statuses := a.Strategies()
	require.Len(t, statuses, 1)
	assert.Equal(t, "compound", statuses[0].Name)
	assert.Equal(t, int64(10000), statuses[0].TargetBP)
}
