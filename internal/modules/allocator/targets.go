package allocator

import "coffer/internal/domain"

// ComputeTargets derives target weights in basis points from yield scores.
//
// A zero score sum splits the pool evenly. Otherwise each score is scaled to
// its proportional share, a ceiling cap is applied, and sub-floor shares are
// zeroed out entirely rather than clipped up: an allocation too small to pay
// for its own overhead is not worth holding at all.
//
// After cap/floor the weights are renormalized so non-zero targets sum to
// exactly 10,000 bp. Renormalization can push a previously-capped weight
// slightly above the nominal ceiling; this is accepted, not corrected.
// Integer division dust from renormalization lands on the largest target.
func ComputeTargets(scores []int64, ceilingBP, floorBP int64) []int64 {
	n := len(scores)
	if n == 0 {
		return nil
	}

	targets := make([]int64, n)

	var totalScore int64
	for _, s := range scores {
		if s > 0 {
			totalScore += s
		}
	}

	if totalScore == 0 {
		even := domain.BasisPointDenominator / int64(n)
		rem := domain.BasisPointDenominator % int64(n)
		for i := range targets {
			targets[i] = even
		}
		for i := int64(0); i < rem; i++ {
			targets[i]++
		}
		return targets
	}

	for i, s := range scores {
		if s < 0 {
			s = 0
		}
		uncapped := s * domain.BasisPointDenominator / totalScore
		switch {
		case uncapped > ceilingBP:
			targets[i] = ceilingBP
		case uncapped < floorBP:
			targets[i] = 0
		default:
			targets[i] = uncapped
		}
	}

	var sum int64
	for _, t := range targets {
		sum += t
	}
	if sum == 0 || sum == domain.BasisPointDenominator {
		return targets
	}

	var newSum int64
	largest := -1
	for i, t := range targets {
		if t == 0 {
			continue
		}
		targets[i] = t * domain.BasisPointDenominator / sum
		newSum += targets[i]
		if largest == -1 || targets[i] > targets[largest] {
			largest = i
		}
	}
	if largest >= 0 && newSum != domain.BasisPointDenominator {
		targets[largest] += domain.BasisPointDenominator - newSum
	}

	return targets
}
