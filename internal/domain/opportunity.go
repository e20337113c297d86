package domain

import (
	"strings"
	"time"
)

// OpportunityType tags the two detector outputs.
type OpportunityType string

const (
	OpportunityDirect     OpportunityType = "direct"
	OpportunityTriangular OpportunityType = "triangular"
)

// Opportunity is a detected, not-yet-executed arbitrage candidate. Direct
// opportunities populate the Buy*/Sell* fields; triangular ones populate
// Cycle, LegRates, StartSize and FinalSize. Both variants carry DetectedAt,
// against which staleness is always evaluated — an opportunity is never
// reused across detection cycles.
type Opportunity struct {
	ID   string
	Type OpportunityType

	// Direct: buy Pair.Base at BuyVenue, sell at SellVenue.
	Pair      TradingPair // venue-agnostic market
	BuyVenue  string
	SellVenue string
	BuyRate   float64
	SellRate  float64

	// Triangular: ordered legs returning to the start currency, all on Venue.
	Venue     string
	Cycle     []TradingPair
	LegRates  []float64
	StartSize float64
	FinalSize float64

	Size           float64 // executable size in base units (direct) or start notional (triangular)
	ExpectedProfit float64
	ProfitPct      float64
	DetectedAt     time.Time
}

// Fingerprint is a deterministic key identifying "the same" opportunity
// across detection cycles: the market and venues involved, independent of
// rates, sizes, and detection time. The executor uses it to enforce
// at-most-one in-flight execution per opportunity.
func (o Opportunity) Fingerprint() string {
	switch o.Type {
	case OpportunityDirect:
		return "direct:" + o.Pair.Market().String() + ":" + o.BuyVenue + ">" + o.SellVenue
	case OpportunityTriangular:
		legs := make([]string, len(o.Cycle))
		for i, leg := range o.Cycle {
			legs[i] = leg.Base + "/" + leg.Quote
		}
		return "tri:" + o.Venue + ":" + strings.Join(legs, ">")
	default:
		return string(o.Type) + ":" + o.ID
	}
}

// Stale reports whether the opportunity has outlived the staleness window at
// the given instant. Stale opportunities must be re-detected, never executed.
func (o Opportunity) Stale(now time.Time, window time.Duration) bool {
	return now.Sub(o.DetectedAt) > window
}
