// Package position owns the running per-pair exposure and daily P&L. It is
// the only mutable state shared across concurrent executions, so every
// access goes through one mutex.
package position

import (
	"sync"
	"time"

	"github.com/quantfall/xrparb/internal/domain"
)

// dayLength is the trading-day boundary for counter resets.
const dayLength = 24 * time.Hour

// Ledger linearizes position updates. Readers only ever receive deep-copied
// snapshots; the live maps never escape the lock.
type Ledger struct {
	mu          sync.Mutex
	positions   map[domain.TradingPair]domain.PairPosition
	dailyPnL    float64
	tradeCount  int
	winCount    int
	maxDrawdown float64
	dayStart    time.Time

	now func() time.Time // injectable clock for tests
}

// NewLedger creates an empty ledger with the trading day starting now.
func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[domain.TradingPair]domain.PairPosition),
		dayStart:  time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Update records one confirmed trade: size delta and realized profit for
// the pair. If the trading day has rolled over, all counters reset before
// the trade is applied, atomically with it. Returns the post-update
// snapshot.
func (l *Ledger) Update(pair domain.TradingPair, size, profit float64) domain.PositionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeResetLocked()

	key := pair.Market()
	p := l.positions[key]
	p.Pair = key
	p.NetSize += size
	p.RealizedPnL += profit
	p.TradeCount++
	l.positions[key] = p

	l.dailyPnL += profit
	l.tradeCount++
	if profit > 0 {
		l.winCount++
	}
	if l.dailyPnL < l.maxDrawdown {
		l.maxDrawdown = l.dailyPnL
	}

	return l.snapshotLocked()
}

// Snapshot returns a copy of the current state. The daily boundary is
// applied here too, so a reader after midnight never sees yesterday's
// counters.
func (l *Ledger) Snapshot() domain.PositionSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeResetLocked()
	return l.snapshotLocked()
}

// maybeResetLocked zeroes all counters and advances the day boundary when
// the current day has elapsed. Caller must hold l.mu.
func (l *Ledger) maybeResetLocked() {
	if l.now().Sub(l.dayStart) <= dayLength {
		return
	}
	l.positions = make(map[domain.TradingPair]domain.PairPosition)
	l.dailyPnL = 0
	l.tradeCount = 0
	l.winCount = 0
	l.maxDrawdown = 0
	l.dayStart = l.now()
}

// snapshotLocked deep-copies the state. Caller must hold l.mu.
func (l *Ledger) snapshotLocked() domain.PositionSnapshot {
	positions := make(map[domain.TradingPair]domain.PairPosition, len(l.positions))
	for k, v := range l.positions {
		positions[k] = v
	}
	return domain.PositionSnapshot{
		Positions:   positions,
		DailyPnL:    l.dailyPnL,
		TradeCount:  l.tradeCount,
		WinCount:    l.winCount,
		MaxDrawdown: l.maxDrawdown,
		DayStart:    l.dayStart,
	}
}
