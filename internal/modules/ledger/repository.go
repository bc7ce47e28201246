// Package ledger persists the append-only audit trail. Every state-changing
// pool and allocator operation is recorded here with a unique ID, so the
// full history of capital movements can be reconstructed after the fact.
//
// The ledger database runs with synchronous(FULL): a record that was
// acknowledged is on disk.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	operation TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_operation ON audit_log(operation);
CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);
`

// Record is one audit trail entry.
type Record struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository handles audit log database operations. It implements the
// recorder interface the pool and allocator write through.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a ledger repository and ensures the schema exists.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize audit log schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "ledger").Logger(),
	}, nil
}

// Record appends an audit entry. It never returns an error: the audit trail
// must not be able to abort the operation it describes. Failures are logged.
func (r *Repository) Record(operation string, fields map[string]any) {
	details, err := json.Marshal(fields)
	if err != nil {
		r.log.Error().Err(err).Str("operation", operation).Msg("Failed to encode audit details")
		details = []byte("{}")
	}

	_, err = r.db.Exec(
		"INSERT INTO audit_log (id, operation, details, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), operation, string(details), time.Now().Unix(),
	)
	if err != nil {
		r.log.Error().Err(err).Str("operation", operation).Msg("Failed to append audit record")
	}
}

// Recent returns the newest records, optionally filtered by operation.
func (r *Repository) Recent(limit int, operation string) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT id, operation, details, created_at FROM audit_log"
	args := []interface{}{}
	if operation != "" {
		query += " WHERE operation = ?"
		args = append(args, operation)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan audit record")
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return records, nil
}

// GetByID returns a single record, or nil if it doesn't exist.
func (r *Repository) GetByID(id string) (*Record, error) {
	row := r.db.QueryRow(
		"SELECT id, operation, details, created_at FROM audit_log WHERE id = ?", id)

	var rec Record
	var details string
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.Operation, &details, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit record %s: %w", id, err)
	}
	decodeDetails(&rec, details)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

// OperationCount is one row of the audit summary.
type OperationCount struct {
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
}

// Summary returns per-operation record counts, most frequent first.
func (r *Repository) Summary() ([]OperationCount, error) {
	rows, err := r.db.Query(
		"SELECT operation, COUNT(*) FROM audit_log GROUP BY operation ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query audit summary: %w", err)
	}
	defer rows.Close()

	counts := make([]OperationCount, 0)
	for rows.Next() {
		var oc OperationCount
		if err := rows.Scan(&oc.Operation, &oc.Count); err != nil {
			r.log.Warn().Err(err).Msg("Failed to scan summary row")
			continue
		}
		counts = append(counts, oc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit summary: %w", err)
	}
	return counts, nil
}

// Count returns the total number of audit records.
func (r *Repository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var details string
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.Operation, &details, &createdAt); err != nil {
		return rec, err
	}
	decodeDetails(&rec, details)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, nil
}

func decodeDetails(rec *Record, details string) {
	if err := json.Unmarshal([]byte(details), &rec.Details); err != nil {
		rec.Details = map[string]any{"raw": details}
	}
}
