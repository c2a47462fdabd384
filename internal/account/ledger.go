// Package account tracks the trading engine's cash balance: the amount
// available for new stakes after subtracting what's already reserved in
// open positions. Adapted from pkg/trader/paper/engine.go's Account
// balance bookkeeping (InitialBalance/Balance, debit-on-open,
// credit-on-close), generalized so it can back decision.Engine's Balance
// interface without pulling in paper-engine's order/fill machinery.
package account

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger is a mutex-guarded cash balance. Opening a position debits its
// stake immediately; closing one credits back the stake plus realized
// net P&L (which may be negative).
type Ledger struct {
	mu             sync.RWMutex
	initialBalance decimal.Decimal
	balance        decimal.Decimal
}

// New returns a Ledger seeded with initialBalance.
func New(initialBalance decimal.Decimal) *Ledger {
	return &Ledger{initialBalance: initialBalance, balance: initialBalance}
}

// Available returns the cash currently free to stake, satisfying
// decision.Balance.
func (l *Ledger) Available() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance
}

// Reserve debits stake from the available balance when a position opens.
func (l *Ledger) Reserve(stake decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = l.balance.Sub(stake)
}

// Settle credits back a closed position's stake plus its realized net
// P&L (realizedNetPnL may be negative).
func (l *Ledger) Settle(stake, realizedNetPnL decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance = l.balance.Add(stake).Add(realizedNetPnL)
}

// Balance returns the current balance (same as Available; kept as a
// distinct name for dashboard/metrics call sites that aren't sizing risk).
func (l *Ledger) Balance() decimal.Decimal {
	return l.Available()
}

// InitialBalance returns the balance the ledger was seeded with.
func (l *Ledger) InitialBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialBalance
}

// DrawdownPct returns the current drawdown from the initial balance, as a
// fraction (0 if balance is at or above the initial balance).
func (l *Ledger) DrawdownPct() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.initialBalance.IsZero() || l.balance.GreaterThanOrEqual(l.initialBalance) {
		return decimal.Zero
	}
	return l.initialBalance.Sub(l.balance).Div(l.initialBalance)
}
