// Package snapshots persists periodic point-in-time captures of the pool's
// state. Snapshots are msgpack-encoded blobs: compact, fast to write from
// the scheduler, and decoded only when the history is actually queried.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"coffer/internal/modules/allocator"
	"coffer/internal/modules/pool"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at INTEGER NOT NULL,
	data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
`

// Snapshot is one point-in-time capture of pool and strategy state.
type Snapshot struct {
	TakenAt    time.Time                  `json:"taken_at" msgpack:"taken_at"`
	Status     pool.Status                `json:"status" msgpack:"status"`
	Strategies []allocator.StrategyStatus `json:"strategies" msgpack:"strategies"`
}

// Take captures the pool's current state.
func Take(p *pool.Pool) Snapshot {
	return Snapshot{
		TakenAt:    time.Now(),
		Status:     p.Status(),
		Strategies: p.Strategies(),
	}
}

// Repository handles snapshot database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository and ensures the schema exists.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize snapshots schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}, nil
}

// Save persists a snapshot.
func (r *Repository) Save(snap Snapshot) error {
	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = r.db.Exec(
		"INSERT INTO snapshots (taken_at, data) VALUES (?, ?)",
		snap.TakenAt.Unix(), data,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (r *Repository) Latest() (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRow(
		"SELECT data FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// List returns up to limit snapshots, newest first.
func (r *Repository) List(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT data FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan snapshot row")
			continue
		}
		var snap Snapshot
		if err := msgpack.Unmarshal(data, &snap); err != nil {
			r.log.Warn().Err(err).Msg("Failed to decode snapshot, skipping")
			continue
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// Prune deletes everything but the newest keep snapshots.
func (r *Repository) Prune(keep int) (int64, error) {
	if keep <= 0 {
		keep = 1
	}
	res, err := r.db.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY taken_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// Count returns the number of stored snapshots.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}
