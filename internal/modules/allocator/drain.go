package allocator

// DrainOutcome reports one strategy's emergency withdrawal.
type DrainOutcome struct {
	Strategy  string
	Requested int64
	Recovered int64
	Err       error
}

// DrainAll attempts to withdraw every strategy's entire reported value,
// with the same fail-safe isolation as Harvest: a strategy that fails is
// recorded and skipped. Returns per-strategy outcomes and the total
// recovered.
func (a *Allocator) DrainAll() ([]DrainOutcome, int64) {
	outcomes := make([]DrainOutcome, 0, len(a.strategies))
	var recovered int64

	for _, s := range a.strategies {
		value := s.TotalValue()
		if value == 0 {
			outcomes = append(outcomes, DrainOutcome{Strategy: s.Name()})
			continue
		}
		got, err := s.Withdraw(value)
		if err != nil {
			a.log.Error().Err(err).Str("strategy", s.Name()).Int64("value", value).
				Msg("Emergency drain failed for strategy, skipping")
			a.recorder.Record("drain_failure", map[string]any{
				"strategy": s.Name(),
				"value":    value,
				"reason":   err.Error(),
			})
			outcomes = append(outcomes, DrainOutcome{Strategy: s.Name(), Requested: value, Err: err})
			continue
		}
		recovered += got
		a.recorder.Record("drain_success", map[string]any{
			"strategy":  s.Name(),
			"requested": value,
			"recovered": got,
		})
		outcomes = append(outcomes, DrainOutcome{Strategy: s.Name(), Requested: value, Recovered: got})
	}

	return outcomes, recovered
}
