package domain

// AuditRecorder receives one structured record per state-changing operation.
// Records form an append-only trail that external monitors rely on for
// solvency verification, so every mutation path emits one.
//
// Recording is best-effort from the caller's perspective: implementations
// must not fail the enclosing operation. The sqlite-backed implementation
// lives in internal/modules/ledger; tests use an in-memory recorder.
type AuditRecorder interface {
	Record(operation string, fields map[string]any)
}

// NopRecorder discards all records. Useful as a default when no ledger is
// wired (unit tests, simulations).
type NopRecorder struct{}

// Record implements AuditRecorder.
func (NopRecorder) Record(string, map[string]any) {}
