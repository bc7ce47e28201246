// Package pool implements the user-facing capital pool: deposit buffering,
// proportional share accounting, withdrawals, harvest-driven fee
// distribution, and the emergency recovery path.
//
// Every public operation takes the pool mutex for its full duration, so the
// system is single-writer: operations never interleave and internal state
// needs no finer locking. Within an operation the rule is mutate-then-call:
// internal counters (share burns, buffer decrements) are updated before any
// external strategy call, because a strategy call is the only point where
// control can re-enter the system.
package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"coffer/internal/domain"
	"coffer/internal/modules/allocator"
)

// Pool buffers deposits, mints and burns ownership units, and drives the
// allocator. It is the only component that mutates the idle buffer.
type Pool struct {
	mu sync.Mutex

	asset string
	cfg   Config

	cash int64 // actual base-asset balance held at the pool
	idle int64 // accounting counter for unallocated value

	shares *ShareLedger
	alloc  *allocator.Allocator

	treasury    string
	beneficiary string
	noIncentive map[string]bool

	paused bool

	lastHarvest      time.Time
	cumulativeProfit int64

	payer    domain.Payer
	recorder domain.AuditRecorder
	log      zerolog.Logger
}

// New creates a pool over the given allocator. payer may be nil when
// outbound transfers are accounted only (tests, simulations).
func New(asset string, cfg Config, alloc *allocator.Allocator, payer domain.Payer, recorder domain.AuditRecorder, log zerolog.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = domain.NopRecorder{}
	}
	return &Pool{
		asset:       asset,
		cfg:         cfg,
		shares:      NewShareLedger(),
		alloc:       alloc,
		noIncentive: make(map[string]bool),
		payer:       payer,
		recorder:    recorder,
		log:         log.With().Str("service", "pool").Logger(),
	}, nil
}

// memento captures the counters an operation may touch, for rollback.
type memento struct {
	cash, idle       int64
	holder           string
	holderShares     int64
	treasuryShares   int64
	totalShares      int64
	cumulativeProfit int64
	lastHarvest      time.Time
}

func (p *Pool) snapshot(holder string) memento {
	return memento{
		cash:             p.cash,
		idle:             p.idle,
		holder:           holder,
		holderShares:     p.shares.BalanceOf(holder),
		treasuryShares:   p.shares.BalanceOf(p.treasury),
		totalShares:      p.shares.Total(),
		cumulativeProfit: p.cumulativeProfit,
		lastHarvest:      p.lastHarvest,
	}
}

func (p *Pool) restore(m memento) {
	p.cash = m.cash
	p.idle = m.idle
	p.cumulativeProfit = m.cumulativeProfit
	p.lastHarvest = m.lastHarvest

	setBalance := func(holder string, want int64) {
		have := p.shares.BalanceOf(holder)
		switch {
		case have < want:
			p.shares.Mint(holder, want-have)
		case have > want:
			_ = p.shares.Burn(holder, have-want)
		}
	}
	if m.holder != "" {
		setBalance(m.holder, m.holderShares)
	}
	if p.treasury != "" && p.treasury != m.holder {
		setBalance(p.treasury, m.treasuryShares)
	}
	if p.shares.Total() != m.totalShares {
		p.log.Error().
			Int64("have", p.shares.Total()).
			Int64("want", m.totalShares).
			Msg("Share supply mismatch after rollback")
	}
}

// TotalValue returns the pool's total managed value: the idle buffer plus
// everything the allocator reports. Callers must not hold the mutex.
func (p *Pool) TotalValue() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalValue()
}

func (p *Pool) totalValue() int64 {
	return p.idle + p.alloc.TotalValue()
}

// convertToShares converts an asset amount into ownership units at the
// current unit price. totalBefore is the pool value before the amount is
// credited.
func (p *Pool) convertToShares(amount, totalBefore int64) int64 {
	supply := p.shares.Total()
	if supply == 0 || totalBefore == 0 {
		return amount
	}
	return amount * supply / totalBefore
}

// convertToAssets converts ownership units into an asset amount at the
// current unit price, rounding down.
func (p *Pool) convertToAssets(units int64) int64 {
	supply := p.shares.Total()
	if supply == 0 {
		return 0
	}
	return units * p.totalValue() / supply
}

// Deposit credits amount to the pool for holder, minting proportional
// ownership units. The deposit lands in the idle buffer; once the buffer
// reaches its threshold the whole buffer is allocated in one call,
// amortizing the allocation overhead across many small deposits.
func (p *Pool) Deposit(holder string, amount int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return 0, domain.ErrPaused
	}
	if amount <= 0 {
		return 0, domain.ErrZeroAmount
	}
	if amount < p.cfg.MinContribution {
		return 0, fmt.Errorf("%w: %d < %d", domain.ErrBelowMinContribution, amount, p.cfg.MinContribution)
	}

	total := p.totalValue()
	if p.cfg.MaxTotalValue > 0 && total+amount > p.cfg.MaxTotalValue {
		return 0, fmt.Errorf("%w: %d + %d > %d", domain.ErrMaxValueExceeded, total, amount, p.cfg.MaxTotalValue)
	}

	units := p.convertToShares(amount, total)
	if units == 0 {
		return 0, fmt.Errorf("%w: deposit too small for one unit", domain.ErrBelowMinContribution)
	}

	m := p.snapshot(holder)

	p.shares.Mint(holder, units)
	p.cash += amount
	p.idle += amount

	if err := p.maybeAllocate(); err != nil {
		p.restore(m)
		return 0, err
	}

	p.recorder.Record("deposit", map[string]any{
		"holder": holder,
		"amount": amount,
		"units":  units,
		"idle":   p.idle,
	})
	p.log.Info().Str("holder", holder).Int64("amount", amount).Int64("units", units).Msg("Deposit")
	return units, nil
}

// Mint credits enough assets to mint exactly units ownership units for
// holder, and returns the asset amount charged.
func (p *Pool) Mint(holder string, units int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return 0, domain.ErrPaused
	}
	if units <= 0 {
		return 0, domain.ErrZeroAmount
	}

	total := p.totalValue()
	supply := p.shares.Total()
	amount := units
	if supply > 0 && total > 0 {
		amount = ceilDiv(units*total, supply)
	}

	if amount < p.cfg.MinContribution {
		return 0, fmt.Errorf("%w: %d < %d", domain.ErrBelowMinContribution, amount, p.cfg.MinContribution)
	}
	if p.cfg.MaxTotalValue > 0 && total+amount > p.cfg.MaxTotalValue {
		return 0, fmt.Errorf("%w: %d + %d > %d", domain.ErrMaxValueExceeded, total, amount, p.cfg.MaxTotalValue)
	}

	m := p.snapshot(holder)

	p.shares.Mint(holder, units)
	p.cash += amount
	p.idle += amount

	if err := p.maybeAllocate(); err != nil {
		p.restore(m)
		return 0, err
	}

	p.recorder.Record("deposit", map[string]any{
		"holder": holder,
		"amount": amount,
		"units":  units,
		"idle":   p.idle,
	})
	return amount, nil
}

// maybeAllocate pushes the whole idle buffer into the allocator once it
// reaches the configured threshold. Skipped while no strategies are
// registered: capital waits in the buffer until the registry is populated.
func (p *Pool) maybeAllocate() error {
	if p.paused || p.idle < p.cfg.AllocateThreshold || p.idle == 0 {
		return nil
	}
	if p.alloc.Count() == 0 {
		p.log.Debug().Int64("idle", p.idle).Msg("Allocation deferred, no strategies registered")
		return nil
	}

	amount := p.idle
	// Buffer is cleared before the external deposit calls.
	p.idle = 0
	p.cash -= amount

	if err := p.alloc.Allocate(amount); err != nil {
		p.idle = amount
		p.cash += amount
		return fmt.Errorf("allocation failed: %w", err)
	}
	return nil
}

// Withdraw pays out amount base-asset units to recipient, burning the
// holder's proportional units. Units are burned before any external call.
// Funds come idle-first, then proportionally from the allocator.
func (p *Pool) Withdraw(holder string, amount int64, recipient string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount <= 0 {
		return 0, domain.ErrZeroAmount
	}

	supply := p.shares.Total()
	total := p.totalValue()
	if supply == 0 || total == 0 {
		return 0, domain.ErrInsufficientShares
	}
	units := ceilDiv(amount*supply, total)
	if units > p.shares.BalanceOf(holder) {
		return 0, domain.ErrInsufficientShares
	}

	return p.withdraw(holder, units, amount, recipient)
}

// Redeem burns exactly units of the holder's shares and pays out the
// proportional asset amount to recipient.
func (p *Pool) Redeem(holder string, units int64, recipient string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if units <= 0 {
		return 0, domain.ErrZeroAmount
	}
	if units > p.shares.BalanceOf(holder) {
		return 0, domain.ErrInsufficientShares
	}

	amount := p.convertToAssets(units)
	if amount == 0 {
		return 0, domain.ErrZeroAmount
	}

	return p.withdraw(holder, units, amount, recipient)
}

// withdraw is the shared serve path. Callers hold the mutex and have
// validated units against the holder's balance.
func (p *Pool) withdraw(holder string, units, amount int64, recipient string) (int64, error) {
	m := p.snapshot(holder)

	// Burn before any external interaction.
	if err := p.shares.Burn(holder, units); err != nil {
		return 0, err
	}

	fromIdle := amount
	if p.idle < fromIdle {
		fromIdle = p.idle
	}
	fromAlloc := amount - fromIdle

	var pulled int64
	if fromAlloc > 0 {
		got, err := p.alloc.Withdraw(fromAlloc)
		if err != nil {
			p.restore(m)
			return 0, fmt.Errorf("withdrawal failed: %w", err)
		}
		pulled = got
		p.cash += got
	}

	toTransfer := amount
	if p.cash < toTransfer {
		toTransfer = p.cash
	}
	shortfall := amount - toTransfer
	if shortfall > p.cfg.WithdrawTolerance {
		p.rollbackWithdrawal(m, pulled)
		return 0, fmt.Errorf("%w: requested %d, available %d, shortfall %d (tolerance %d)",
			domain.ErrInsolvent, amount, toTransfer, shortfall, p.cfg.WithdrawTolerance)
	}

	p.cash -= toTransfer
	// Everything left at the pool is unallocated by definition.
	p.idle = p.cash

	if err := p.pay(recipient, toTransfer); err != nil {
		p.rollbackWithdrawal(m, pulled)
		return 0, fmt.Errorf("payout failed: %w", err)
	}

	p.recorder.Record("withdrawal", map[string]any{
		"holder":    holder,
		"recipient": recipient,
		"requested": amount,
		"paid":      toTransfer,
		"units":     units,
		"shortfall": shortfall,
	})
	p.log.Info().Str("holder", holder).Int64("requested", amount).Int64("paid", toTransfer).Msg("Withdrawal")
	return toTransfer, nil
}

// rollbackWithdrawal restores counters and best-effort returns funds the
// allocator already handed back.
func (p *Pool) rollbackWithdrawal(m memento, pulled int64) {
	p.restore(m)
	if pulled > 0 {
		// The restored counters assume these funds are back in strategies.
		if err := p.alloc.Allocate(pulled); err != nil {
			// Funds stay at the pool; the idle counter absorbs them.
			p.cash = m.cash + pulled
			p.idle = p.cash
			p.log.Error().Err(err).Int64("amount", pulled).Msg("Failed to return funds to allocator after aborted withdrawal")
		}
	}
}

// pay moves funds out of the pool. The balance is already debited; a nil
// payer means transfers are accounted only.
func (p *Pool) pay(recipient string, amount int64) error {
	if amount == 0 || p.payer == nil {
		return nil
	}
	return p.payer.Pay(recipient, amount)
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
