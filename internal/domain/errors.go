package domain

import "errors"

// Validation errors. These are rejected before any state mutation and are
// always safe to retry with corrected input.
var (
	ErrZeroAmount           = errors.New("amount must be greater than zero")
	ErrBelowMinContribution = errors.New("amount below minimum contribution")
	ErrMaxValueExceeded     = errors.New("deposit would exceed maximum pool value")
	ErrInvalidFeeSplit      = errors.New("fee split must sum to 10000 basis points")
	ErrInvalidBasisPoints   = errors.New("value out of basis point range")
	ErrInsufficientShares   = errors.New("insufficient share balance")
)

// Strategy registry errors.
var (
	ErrNoStrategies       = errors.New("no strategies available")
	ErrStrategyExists     = errors.New("strategy already registered")
	ErrStrategyNotFound   = errors.New("strategy not registered")
	ErrTooManyStrategies  = errors.New("maximum strategy count reached")
	ErrStrategyNotDrained = errors.New("strategy still holds value")
	ErrAssetMismatch      = errors.New("strategy asset does not match pool asset")
)

// Operational errors.
var (
	ErrRebalanceNotNeeded = errors.New("rebalance conditions not met")
	ErrPaused             = errors.New("pool is paused")
	ErrNotPaused          = errors.New("operation requires the pool to be paused")
)

// ErrInsolvent signals a withdrawal shortfall exceeding the configured
// rounding tolerance. It is deliberately fatal and never absorbed: masking
// it would let insolvency go undetected.
var ErrInsolvent = errors.New("withdrawal shortfall exceeds tolerance")
