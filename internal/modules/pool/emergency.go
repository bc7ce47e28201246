package pool

import (
	"coffer/internal/domain"
)

// The emergency path is a deliberate three-step manual sequence, each step
// its own operation: pause, drain, resync. Keeping the steps separate
// bounds the blast radius of a broken backend and allows partial progress.

// Pause blocks deposits, harvest, and automatic allocation. Withdrawals
// are never blocked: outflow must always remain available.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return
	}
	p.paused = true
	p.recorder.Record("paused", map[string]any{"idle": p.idle, "cash": p.cash})
	p.log.Warn().Msg("Pool paused")
}

// Unpause re-enables deposits, harvest, and automatic allocation.
func (p *Pool) Unpause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return
	}
	p.paused = false
	p.recorder.Record("unpaused", map[string]any{"idle": p.idle, "cash": p.cash})
	p.log.Info().Msg("Pool unpaused")
}

// Paused reports whether the pool is paused.
func (p *Pool) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// DrainResult reports the outcome of draining one strategy.
type DrainResult struct {
	Strategy  string `json:"strategy"`
	Requested int64  `json:"requested"`
	Recovered int64  `json:"recovered"`
	Err       string `json:"error,omitempty"`
}

// EmergencyDrain pulls every strategy's entire reported value back to the
// pool with the same per-strategy fault isolation as harvest: a strategy
// that fails is skipped and logged, never fatal to the rest. Requires the
// pool to be paused first.
//
// Drained funds land in the pool's balance without passing through the
// normal accounting path, so the idle buffer counter is stale afterwards;
// SyncIdleBuffer is the explicit third step that reconciles it.
func (p *Pool) EmergencyDrain() ([]DrainResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return nil, domain.ErrNotPaused
	}

	results, recovered := p.alloc.DrainAll()
	p.cash += recovered

	p.recorder.Record("emergency_drain", map[string]any{
		"recovered":  recovered,
		"strategies": len(results),
		"cash":       p.cash,
		"idle":       p.idle,
	})
	p.log.Warn().Int64("recovered", recovered).Int("strategies", len(results)).Msg("Emergency drain complete")

	out := make([]DrainResult, len(results))
	for i, r := range results {
		out[i] = DrainResult{Strategy: r.Strategy, Requested: r.Requested, Recovered: r.Recovered}
		if r.Err != nil {
			out[i].Err = r.Err.Error()
		}
	}
	return out, nil
}

// SyncIdleBuffer recomputes the idle buffer from the pool's actual balance.
// Needed after an emergency drain, which moves funds into the pool without
// maintaining the buffer counter.
func (p *Pool) SyncIdleBuffer() (before, after int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before = p.idle
	p.idle = p.cash
	after = p.idle

	p.recorder.Record("idle_resync", map[string]any{
		"before": before,
		"after":  after,
	})
	p.log.Info().Int64("before", before).Int64("after", after).Msg("Idle buffer resynced")
	return before, after
}
