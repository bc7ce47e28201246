package allocator

import (
	"fmt"

	"coffer/internal/domain"
)

// Rebalance converges the current allocation toward freshly computed
// targets. Strategies are partitioned into excess (current above target)
// and needy (target above current) in registration order, then each excess
// strategy's surplus is withdrawn and greedily distributed across needy
// strategies in list order.
//
// The greedy matching is deliberately order-dependent and makes no attempt
// to minimize the number of transfers; worst case it produces
// excess_count * needy_count moves. With the strategy count bounded this
// is acceptable.
func (a *Allocator) Rebalance() error {
	if !a.ShouldRebalance() {
		return domain.ErrRebalanceNotNeeded
	}

	a.recomputeTargets()

	values := make([]int64, len(a.strategies))
	var total int64
	for i, s := range a.strategies {
		values[i] = s.TotalValue()
		total += values[i]
	}

	// Scratch lists sized to the strategy count.
	type imbalance struct {
		idx    int
		amount int64
	}
	excess := make([]imbalance, 0, len(a.strategies))
	needy := make([]imbalance, 0, len(a.strategies))

	for i := range a.strategies {
		target := total * a.targets[i] / domain.BasisPointDenominator
		switch {
		case values[i] > target:
			excess = append(excess, imbalance{idx: i, amount: values[i] - target})
		case target > values[i]:
			needy = append(needy, imbalance{idx: i, amount: target - values[i]})
		}
	}

	// Completed transfers, kept so a failure can reverse them: a failed
	// rebalance must not leave a partially-applied allocation behind.
	type transfer struct {
		src, dst domain.Strategy
		amount   int64
	}
	var done []transfer

	unwind := func() {
		for i := len(done) - 1; i >= 0; i-- {
			tr := done[i]
			got, err := tr.dst.Withdraw(tr.amount)
			if err != nil {
				a.log.Error().Err(err).Str("strategy", tr.dst.Name()).
					Int64("amount", tr.amount).Msg("Failed to reverse rebalance transfer")
				continue
			}
			if err := tr.src.Deposit(got); err != nil {
				a.log.Error().Err(err).Str("strategy", tr.src.Name()).
					Int64("amount", got).Msg("Failed to return reversed transfer to source")
				continue
			}
			a.recorder.Record("rebalance_unwound", map[string]any{
				"from":   tr.dst.Name(),
				"to":     tr.src.Name(),
				"amount": got,
			})
		}
	}

	var moves int
	for _, ex := range excess {
		src := a.strategies[ex.idx]
		avail, err := src.Withdraw(ex.amount)
		if err != nil {
			unwind()
			return fmt.Errorf("rebalance withdraw from %s failed: %w", src.Name(), err)
		}

		for j := range needy {
			if avail == 0 {
				break
			}
			if needy[j].amount == 0 {
				continue
			}
			move := avail
			if needy[j].amount < move {
				move = needy[j].amount
			}
			dst := a.strategies[needy[j].idx]
			if err := dst.Deposit(move); err != nil {
				// Park the undelivered remainder back at the source so the
				// funds are not stranded outside any strategy, then reverse
				// the transfers that already went through.
				if rerr := src.Deposit(avail); rerr != nil {
					a.log.Error().Err(rerr).Str("strategy", src.Name()).
						Int64("amount", avail).Msg("Failed to return funds to source after aborted rebalance")
				}
				unwind()
				return fmt.Errorf("rebalance deposit into %s failed: %w", dst.Name(), err)
			}
			done = append(done, transfer{src: src, dst: dst, amount: move})

			a.log.Info().
				Str("from", src.Name()).
				Str("to", dst.Name()).
				Int64("amount", move).
				Msg("Rebalance transfer")
			a.recorder.Record("rebalance_transfer", map[string]any{
				"from":   src.Name(),
				"to":     dst.Name(),
				"amount": move,
			})

			avail -= move
			needy[j].amount -= move
			moves++
		}

		// Rounding can leave surplus with no remaining need; return it.
		if avail > 0 {
			if err := src.Deposit(avail); err != nil {
				unwind()
				return fmt.Errorf("rebalance return to %s failed: %w", src.Name(), err)
			}
		}
	}

	a.log.Info().Int("transfers", moves).Int64("total_value", total).Msg("Rebalance complete")
	return nil
}
