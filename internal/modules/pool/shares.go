package pool

import "coffer/internal/domain"

// ShareLedger tracks ownership units per holder. Units are fungible claims
// on a proportional share of the pool's total managed value.
//
// Invariant: the sum of all holder balances equals the total supply.
type ShareLedger struct {
	balances map[string]int64
	total    int64
}

// NewShareLedger creates an empty share ledger.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{balances: make(map[string]int64)}
}

// Total returns the total units outstanding.
func (l *ShareLedger) Total() int64 {
	return l.total
}

// BalanceOf returns a holder's unit balance. Zero for unknown holders.
func (l *ShareLedger) BalanceOf(holder string) int64 {
	return l.balances[holder]
}

// Mint creates units for a holder.
func (l *ShareLedger) Mint(holder string, units int64) {
	if units <= 0 {
		return
	}
	l.balances[holder] += units
	l.total += units
}

// Burn destroys units held by a holder.
func (l *ShareLedger) Burn(holder string, units int64) error {
	if units <= 0 {
		return domain.ErrZeroAmount
	}
	if l.balances[holder] < units {
		return domain.ErrInsufficientShares
	}
	l.balances[holder] -= units
	l.total -= units
	if l.balances[holder] == 0 {
		delete(l.balances, holder)
	}
	return nil
}

// Holders returns the number of distinct holders with a non-zero balance.
func (l *ShareLedger) Holders() int {
	return len(l.balances)
}
