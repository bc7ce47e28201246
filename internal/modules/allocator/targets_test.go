package allocator

import (
	"testing"

	"coffer/internal/domain"
)

func sumTargets(targets []int64) int64 {
	var sum int64
	for _, t := range targets {
		sum += t
	}
	return sum
}

func TestComputeTargets_Empty(t *testing.T) {
	if got := ComputeTargets(nil, 5000, 500); got != nil {
		t.Errorf("expected nil targets for empty scores, got %v", got)
	}
}

func TestComputeTargets_ZeroScoresSplitEvenly(t *testing.T) {
	targets := ComputeTargets([]int64{0, 0, 0}, 10000, 0)
	if sumTargets(targets) != domain.BasisPointDenominator {
		t.Errorf("even split must sum to 10000, got %d (%v)", sumTargets(targets), targets)
	}
	for i, tgt := range targets {
		if tgt < 3333 || tgt > 3334 {
			t.Errorf("target[%d] = %d, want 3333 or 3334", i, tgt)
		}
	}
}

func TestComputeTargets_ProportionalSplit(t *testing.T) {
	// Scores 300bp and 600bp with generous cap and floor: neither is
	// clipped, targets land on the proportional thirds.
	targets := ComputeTargets([]int64{300, 600}, 5000, 1000)
	if targets[0] != 3333 {
		t.Errorf("target[0] = %d, want 3333", targets[0])
	}
	if targets[1] != 6667 {
		t.Errorf("target[1] = %d, want 6667", targets[1])
	}
}

func TestComputeTargets_SubFloorZeroedOut(t *testing.T) {
	// 100 against 9900: the small share falls below the floor and is
	// zeroed entirely, not clipped up; the remainder renormalizes to 100%.
	targets := ComputeTargets([]int64{9900, 100}, 10000, 500)
	if targets[1] != 0 {
		t.Errorf("sub-floor target should be zeroed, got %d", targets[1])
	}
	if targets[0] != 10000 {
		t.Errorf("surviving target should renormalize to 10000, got %d", targets[0])
	}
}

func TestComputeTargets_RenormalizationMayExceedCeiling(t *testing.T) {
	// The cap binds before renormalization. Rescaling the capped value
	// back to a 10000 sum can push it past the nominal ceiling; that
	// overshoot is accepted behavior, pinned here.
	targets := ComputeTargets([]int64{900, 100}, 5000, 0)
	if sumTargets(targets) != domain.BasisPointDenominator {
		t.Fatalf("targets must sum to 10000, got %d (%v)", sumTargets(targets), targets)
	}
	if targets[0] <= 5000 {
		t.Errorf("renormalized capped target expected above 5000, got %d", targets[0])
	}
}

func TestComputeTargets_SumInvariant(t *testing.T) {
	cases := [][]int64{
		{},
		{0},
		{1},
		{500},
		{100, 200, 300},
		{300, 600},
		{9900, 100},
		{1, 1, 1, 1, 1, 1, 1},
		{10000, 0, 0},
		{7, 13, 4242, 9999},
	}
	for _, scores := range cases {
		targets := ComputeTargets(scores, 5000, 500)
		sum := sumTargets(targets)
		if sum != 0 && sum != domain.BasisPointDenominator {
			t.Errorf("scores %v: target sum = %d, want 0 or 10000", scores, sum)
		}
	}
}
