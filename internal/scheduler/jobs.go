package scheduler

import (
	"errors"

	"github.com/rs/zerolog"

	"coffer/internal/database"
	"coffer/internal/domain"
	"coffer/internal/modules/pool"
	"coffer/internal/modules/snapshots"
)

// HarvestJob runs a harvest cycle as the configured keeper identity.
type HarvestJob struct {
	pool   *pool.Pool
	keeper string
	log    zerolog.Logger
}

// NewHarvestJob creates a new harvest job
func NewHarvestJob(p *pool.Pool, keeper string, log zerolog.Logger) *HarvestJob {
	return &HarvestJob{
		pool:   p,
		keeper: keeper,
		log:    log.With().Str("job", "harvest").Logger(),
	}
}

// Name returns the job name
func (j *HarvestJob) Name() string { return "harvest" }

// Run harvests all strategies and distributes fees. A paused pool is not an
// error for a background job; it just means an operator is mid-emergency.
func (j *HarvestJob) Run() error {
	profit, err := j.pool.Harvest(j.keeper)
	if errors.Is(err, domain.ErrPaused) {
		j.log.Debug().Msg("Pool paused, skipping harvest")
		return nil
	}
	if err != nil {
		return err
	}
	j.log.Info().Int64("profit", profit).Msg("Harvest job finished")
	return nil
}

// RebalanceJob checks drift and rebalances when the spread crosses the
// configured threshold.
type RebalanceJob struct {
	pool *pool.Pool
	log  zerolog.Logger
}

// NewRebalanceJob creates a new rebalance job
func NewRebalanceJob(p *pool.Pool, log zerolog.Logger) *RebalanceJob {
	return &RebalanceJob{
		pool: p,
		log:  log.With().Str("job", "rebalance").Logger(),
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string { return "rebalance" }

// Run rebalances the pool if the drift check says it is worth doing.
func (j *RebalanceJob) Run() error {
	if !j.pool.ShouldRebalance() {
		j.log.Debug().Msg("Rebalance not needed")
		return nil
	}
	err := j.pool.Rebalance()
	if errors.Is(err, domain.ErrPaused) || errors.Is(err, domain.ErrRebalanceNotNeeded) {
		return nil
	}
	if err != nil {
		return err
	}
	j.log.Info().Msg("Rebalance job finished")
	return nil
}

// SnapshotJob captures the pool state and prunes old snapshots.
type SnapshotJob struct {
	pool *pool.Pool
	repo *snapshots.Repository
	keep int
	log  zerolog.Logger
}

// NewSnapshotJob creates a new snapshot job. keep is how many snapshots to
// retain after each capture; zero or negative disables pruning.
func NewSnapshotJob(p *pool.Pool, repo *snapshots.Repository, keep int, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		pool: p,
		repo: repo,
		keep: keep,
		log:  log.With().Str("job", "snapshot").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string { return "snapshot" }

// Run saves a snapshot of the current pool state.
func (j *SnapshotJob) Run() error {
	snap := snapshots.Take(j.pool)
	if err := j.repo.Save(snap); err != nil {
		return err
	}

	if j.keep > 0 {
		deleted, err := j.repo.Prune(j.keep)
		if err != nil {
			return err
		}
		if deleted > 0 {
			j.log.Debug().Int64("deleted", deleted).Msg("Pruned old snapshots")
		}
	}

	j.log.Debug().Int64("total_value", snap.Status.TotalValue).Msg("Snapshot saved")
	return nil
}

// CheckpointJob runs WAL checkpoints across all databases so the WAL files
// do not grow without bound between restarts.
type CheckpointJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewCheckpointJob creates a new WAL checkpoint job
func NewCheckpointJob(dbs []*database.DB, log zerolog.Logger) *CheckpointJob {
	return &CheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *CheckpointJob) Name() string { return "wal_checkpoint" }

// Run checkpoints each database, continuing past individual failures.
func (j *CheckpointJob) Run() error {
	var lastErr error
	for _, db := range j.dbs {
		if err := db.WALCheckpoint(""); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			lastErr = err
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint complete")
	}
	return lastErr
}
