// Package domain contains the core types and interfaces shared across the
// allocator and pool packages. The domain layer is pure: no database, HTTP,
// or logging dependencies.
package domain

// BasisPointDenominator is the full scale for basis-point arithmetic.
// 10,000 bp = 100%.
const BasisPointDenominator int64 = 10_000

// Strategy defines the contract every yield-bearing backend must satisfy.
// The allocator depends only on this interface, never on concrete backend
// types, so backends can be registered and removed at runtime.
//
// Amounts are integer base-asset units. Rates and scores are basis points.
type Strategy interface {
	// Name returns a stable identifier for the backend. Names must be
	// unique within a registry; registration rejects duplicates.
	Name() string

	// Asset returns the base-asset identifier the backend accepts.
	// It must match the pool's base asset or registration fails.
	Asset() string

	// Deposit accepts funds into the backend. The caller has already
	// credited the amount to the backend; after a successful call the
	// backend's reported value must increase by approximately amount.
	Deposit(amount int64) error

	// Withdraw pulls funds out of the backend and returns the amount
	// actually withdrawn, which may be less than requested due to
	// internal rounding. Callers must account with the returned value,
	// not the request.
	Withdraw(amount int64) (int64, error)

	// Harvest realizes accrued yield and returns the profit for the
	// cycle. Zero is a valid "nothing to harvest" result. Harvest must
	// never require prior external funding.
	Harvest() (int64, error)

	// TotalValue returns the backend's current managed value, reflecting
	// any yield accrued since the last call. Monotonically non-decreasing
	// absent a withdrawal.
	TotalValue() int64

	// APY returns the backend's yield score in basis points. Scores are
	// used only for relative weighting across backends.
	APY() int64
}

// Payer moves base-asset units out of the pool to an external recipient.
// The pool debits its own balance before calling Pay, so a Payer
// implementation only has to deliver the funds and must not call back
// into the pool.
type Payer interface {
	Pay(recipient string, amount int64) error
}
