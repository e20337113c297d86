package position

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfall/xrparb/internal/domain"
)

var xrpUSD = domain.TradingPair{Base: "XRP", Quote: "USD"}

func TestUpdate_AccumulatesPerPair(t *testing.T) {
	l := NewLedger()

	l.Update(xrpUSD, 100, 5)
	snap := l.Update(xrpUSD, 50, -2)

	pos := snap.Positions[xrpUSD]
	assert.Equal(t, 150.0, pos.NetSize)
	assert.Equal(t, 3.0, pos.RealizedPnL)
	assert.Equal(t, 2, pos.TradeCount)
	assert.Equal(t, 3.0, snap.DailyPnL)
	assert.Equal(t, 2, snap.TradeCount)
	assert.Equal(t, 1, snap.WinCount)
}

func TestUpdate_VenueCollapsesToMarket(t *testing.T) {
	l := NewLedger()

	l.Update(domain.TradingPair{Base: "XRP", Quote: "USD", Venue: "bitstamp"}, 100, 1)
	snap := l.Update(domain.TradingPair{Base: "XRP", Quote: "USD", Venue: "gatehub"}, 100, 1)

	assert.Len(t, snap.Positions, 1, "venues book into one market position")
	assert.Equal(t, 200.0, snap.Positions[xrpUSD].NetSize)
}

func TestUpdate_TracksMaxDrawdown(t *testing.T) {
	l := NewLedger()

	l.Update(xrpUSD, 100, -50)
	l.Update(xrpUSD, 100, -30)
	snap := l.Update(xrpUSD, 100, 60)

	assert.Equal(t, -20.0, snap.DailyPnL)
	assert.Equal(t, -80.0, snap.MaxDrawdown, "drawdown keeps the deepest point")
}

func TestSnapshot_DeepCopy(t *testing.T) {
	l := NewLedger()
	l.Update(xrpUSD, 100, 5)

	snap := l.Snapshot()
	snap.Positions[xrpUSD] = domain.PairPosition{NetSize: 9999}

	assert.Equal(t, 100.0, l.Snapshot().Positions[xrpUSD].NetSize,
		"mutating a snapshot must not leak into the ledger")
}

func TestDailyReset(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.dayStart = now

	l.Update(xrpUSD, 100, -500)

	// Step past the 24h boundary: the next read resets everything.
	now = now.Add(24*time.Hour + time.Minute)
	snap := l.Snapshot()

	assert.Zero(t, snap.DailyPnL)
	assert.Zero(t, snap.TradeCount)
	assert.Zero(t, snap.MaxDrawdown)
	assert.Empty(t, snap.Positions)
	assert.Equal(t, now, snap.DayStart)
}

func TestDailyReset_AtomicWithUpdate(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.dayStart = now

	l.Update(xrpUSD, 100, -500)

	now = now.Add(25 * time.Hour)
	snap := l.Update(xrpUSD, 10, 1)

	// The reset happened first, then the trade applied to the fresh day.
	assert.Equal(t, 1.0, snap.DailyPnL)
	assert.Equal(t, 1, snap.TradeCount)
	assert.Equal(t, 10.0, snap.Positions[xrpUSD].NetSize)
}

func TestUpdate_ConcurrentLinearized(t *testing.T) {
	l := NewLedger()

	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				l.Update(xrpUSD, 1, 1)
			}
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	assert.Equal(t, float64(workers*perWorker), snap.Positions[xrpUSD].NetSize)
	assert.Equal(t, float64(workers*perWorker), snap.DailyPnL)
	assert.Equal(t, workers*perWorker, snap.TradeCount)
}
