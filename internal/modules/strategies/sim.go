// Package strategies contains in-process strategy implementations. The
// simulated strategy backs dev mode and tests; production backends live
// outside this repository and only have to satisfy domain.Strategy.
package strategies

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by a simulated strategy with failure injection
// enabled.
var ErrUnavailable = errors.New("strategy backend unavailable")

// Sim is an in-memory yield-bearing strategy. Yield accrues into a pending
// bucket via Accrue and is realized by Harvest, mirroring how a real backend
// reports profit only when harvested.
//
// Failure injection flags make individual operations fail on demand, which
// the fail-safe batch paths (harvest, emergency drain) are tested against.
type Sim struct {
	name  string
	asset string
	apyBP int64

	value   int64
	pending int64

	FailDeposit  bool
	FailWithdraw bool
	FailHarvest  bool

	// RoundingLoss shaves this many units off every withdrawal, simulating
	// a backend that rounds down internally.
	RoundingLoss int64
}

// NewSim creates a simulated strategy with the given yield score.
func NewSim(name, asset string, apyBP int64) *Sim {
	return &Sim{name: name, asset: asset, apyBP: apyBP}
}

// Name implements domain.Strategy.
func (s *Sim) Name() string { return s.name }

// Asset implements domain.Strategy.
func (s *Sim) Asset() string { return s.asset }

// APY implements domain.Strategy.
func (s *Sim) APY() int64 { return s.apyBP }

// SetAPY adjusts the reported yield score.
func (s *Sim) SetAPY(bp int64) { s.apyBP = bp }

// TotalValue implements domain.Strategy.
func (s *Sim) TotalValue() int64 { return s.value }

// Deposit implements domain.Strategy.
func (s *Sim) Deposit(amount int64) error {
	if s.FailDeposit {
		return fmt.Errorf("%s: %w", s.name, ErrUnavailable)
	}
	if amount <= 0 {
		return fmt.Errorf("%s: deposit amount must be positive", s.name)
	}
	s.value += amount
	return nil
}

// Withdraw implements domain.Strategy. The returned amount may be less than
// requested when RoundingLoss is set.
func (s *Sim) Withdraw(amount int64) (int64, error) {
	if s.FailWithdraw {
		return 0, fmt.Errorf("%s: %w", s.name, ErrUnavailable)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%s: withdraw amount must be positive", s.name)
	}
	if amount > s.value {
		amount = s.value
	}
	actual := amount - s.RoundingLoss
	if actual < 0 {
		actual = 0
	}
	s.value -= amount
	return actual, nil
}

// Harvest implements domain.Strategy. Realizes pending yield into managed
// value and reports it as profit.
func (s *Sim) Harvest() (int64, error) {
	if s.FailHarvest {
		return 0, fmt.Errorf("%s: %w", s.name, ErrUnavailable)
	}
	profit := s.pending
	s.pending = 0
	s.value += profit
	return profit, nil
}

// Accrue adds unrealized yield, to be reported by the next Harvest.
func (s *Sim) Accrue(amount int64) {
	s.pending += amount
}
