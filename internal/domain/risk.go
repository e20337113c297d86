package domain

import "time"

// RiskLimits are the static gates the assessor applies to every opportunity.
type RiskLimits struct {
	MaxPositionSize    float64 // per-pair net size cap, base units
	MaxDailyLoss       float64 // circuit breaker on accumulated daily loss
	MinProfitThreshold float64 // minimum expected profit per unit of size
	ApprovalThreshold  float64 // risk score above which approval is withheld
}

// RiskAssessment is the ephemeral verdict for one opportunity. Score is in
// [0,1]; lower is safer. Approved is false whenever a hard limit rejected
// the trade, in which case Reason carries the rejection cause.
type RiskAssessment struct {
	OpportunityID string
	Score         float64
	Approved      bool
	Reason        string
}

// PairPosition is the running per-pair exposure for the current trading day.
type PairPosition struct {
	Pair        TradingPair
	NetSize     float64
	RealizedPnL float64
	TradeCount  int
}

// PositionSnapshot is a read-only copy of the position ledger's state, taken
// under its lock. The risk assessor only ever sees snapshots, never the live
// ledger state.
type PositionSnapshot struct {
	Positions   map[TradingPair]PairPosition
	DailyPnL    float64
	TradeCount  int
	WinCount    int
	MaxDrawdown float64
	DayStart    time.Time
}

// SizeFor returns the current net size for a market, zero when untouched today.
func (s PositionSnapshot) SizeFor(pair TradingPair) float64 {
	return s.Positions[pair.Market()].NetSize
}

// WinRate is the fraction of today's trades that closed profitable.
func (s PositionSnapshot) WinRate() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return float64(s.WinCount) / float64(s.TradeCount)
}
