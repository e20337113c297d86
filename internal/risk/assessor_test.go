package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfall/xrparb/internal/domain"
)

func testLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxPositionSize:    10_000,
		MaxDailyLoss:       1_000,
		MinProfitThreshold: 0.01,
		ApprovalThreshold:  0.7,
	}
}

func opp(size, profit, pct float64) domain.Opportunity {
	return domain.Opportunity{
		ID:             "opp-1",
		Type:           domain.OpportunityDirect,
		Pair:           domain.TradingPair{Base: "XRP", Quote: "USD"},
		Size:           size,
		ExpectedProfit: profit,
		ProfitPct:      pct,
	}
}

func snapshotWith(pnl float64, positions map[domain.TradingPair]domain.PairPosition) domain.PositionSnapshot {
	if positions == nil {
		positions = map[domain.TradingPair]domain.PairPosition{}
	}
	return domain.PositionSnapshot{Positions: positions, DailyPnL: pnl}
}

func TestAssess_ApprovesHealthyTrade(t *testing.T) {
	a := New(testLimits())

	out := a.Assess(opp(500, 10, 2.0), snapshotWith(0, nil))
	assert.True(t, out.Approved)
	assert.Empty(t, out.Reason)
	// 0.4*(500/10000) + 0.3*(0.01/2.0) + 0.3*0 = 0.0215
	assert.InDelta(t, 0.0215, out.Score, 1e-9)
}

func TestAssess_PositionLimit(t *testing.T) {
	a := New(testLimits())
	positions := map[domain.TradingPair]domain.PairPosition{
		{Base: "XRP", Quote: "USD"}: {NetSize: 9_800},
	}

	out := a.Assess(opp(500, 10, 2.0), snapshotWith(0, positions))
	assert.False(t, out.Approved)
	assert.Equal(t, 1.0, out.Score)
	assert.Equal(t, "position limit: 9800.00 + 500.00 exceeds 10000.00", out.Reason)
}

func TestAssess_DailyLossCircuitBreaker(t *testing.T) {
	a := New(testLimits())

	out := a.Assess(opp(500, 10, 2.0), snapshotWith(-1000.01, nil))
	assert.False(t, out.Approved)
	assert.Equal(t, "daily loss limit reached", out.Reason)

	// Exactly at the limit is still tradable.
	out = a.Assess(opp(500, 10, 2.0), snapshotWith(-1000, nil))
	assert.True(t, out.Approved)
}

func TestAssess_InsufficientProfit(t *testing.T) {
	a := New(testLimits())

	// 1 unit of profit on 500 size is 0.002 per unit, under the 0.01 floor.
	out := a.Assess(opp(500, 1, 0.2), snapshotWith(0, nil))
	assert.False(t, out.Approved)
	assert.Equal(t, "insufficient profit potential", out.Reason)
}

func TestAssess_RejectionOrder(t *testing.T) {
	a := New(testLimits())
	positions := map[domain.TradingPair]domain.PairPosition{
		{Base: "XRP", Quote: "USD"}: {NetSize: 9_800},
	}

	// All three hard limits are breached; the position limit wins because
	// it is checked first.
	out := a.Assess(opp(500, 0.1, 0.02), snapshotWith(-2000, positions))
	assert.Contains(t, out.Reason, "position limit")

	// Without the position breach, the daily loss breaker fires before the
	// profit floor.
	out = a.Assess(opp(500, 0.1, 0.02), snapshotWith(-2000, nil))
	assert.Equal(t, "daily loss limit reached", out.Reason)
}

func TestAssess_ScoreMonotoneInSize(t *testing.T) {
	a := New(testLimits())
	snap := snapshotWith(0, nil)

	small := a.Assess(opp(500, 10, 2.0), snap)
	large := a.Assess(opp(5_000, 100, 2.0), snap)
	assert.Greater(t, large.Score, small.Score)
}

func TestAssess_ScoreMonotoneInDailyLoss(t *testing.T) {
	a := New(testLimits())
	o := opp(500, 10, 2.0)

	healthy := a.Assess(o, snapshotWith(0, nil))
	bleeding := a.Assess(o, snapshotWith(-500, nil))
	assert.Greater(t, bleeding.Score, healthy.Score)
}

func TestAssess_ScoreMonotoneInProfit(t *testing.T) {
	a := New(testLimits())
	snap := snapshotWith(0, nil)

	thin := a.Assess(opp(500, 10, 0.05), snap)
	fat := a.Assess(opp(500, 10, 2.0), snap)
	assert.Greater(t, thin.Score, fat.Score)
}

func TestAssess_ThresholdBoundaryRejects(t *testing.T) {
	limits := testLimits()
	limits.ApprovalThreshold = 0.02
	a := New(limits)

	// Score 0.0215 is above the lowered threshold; approval requires
	// strictly less.
	out := a.Assess(opp(500, 10, 2.0), snapshotWith(0, nil))
	assert.False(t, out.Approved)
	assert.Contains(t, out.Reason, "risk score")
}

func TestAssess_ZeroSizeRejected(t *testing.T) {
	a := New(testLimits())

	out := a.Assess(opp(0, 10, 2.0), snapshotWith(0, nil))
	assert.False(t, out.Approved)
	assert.Equal(t, "insufficient profit potential", out.Reason)
}
