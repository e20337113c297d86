package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/xrparb/internal/domain"
)

// detectTriangular simulates pushing startSize through a currency cycle on
// one venue, degrading each leg's rate by a liquidity-dependent slippage
// before applying it. The cycle is profitable when the simulated final
// amount exceeds the start by at least the configured margin.
func (d *Detector) detectTriangular(cycle []string, venue string, quotes domain.QuoteSet) *domain.Opportunity {
	legs := domain.CycleLegs(cycle, venue)

	legQuotes := make([]domain.RateQuote, len(legs))
	for i, leg := range legs {
		q, ok := quotes.ForPair(leg)
		if !ok || !q.Valid() {
			return nil // a missing or dried-up leg kills the whole cycle
		}
		legQuotes[i] = q
	}

	size := d.startSize
	rates := make([]float64, len(legs))
	for i, q := range legQuotes {
		slip := size / q.Size * d.slippageCoefficient
		if slip > d.maxSlippage {
			slip = d.maxSlippage
		}
		effective := q.Rate * (1 - slip)
		rates[i] = effective
		size *= effective
	}

	profit := size - d.startSize
	profitPct := profit / d.startSize * 100
	if profitPct < d.minTriangularProfitPct {
		return nil
	}

	return &domain.Opportunity{
		ID:             uuid.NewString(),
		Type:           domain.OpportunityTriangular,
		Venue:          venue,
		Cycle:          legs,
		LegRates:       rates,
		StartSize:      d.startSize,
		FinalSize:      size,
		Size:           d.startSize,
		ExpectedProfit: profit,
		ProfitPct:      profitPct,
		DetectedAt:     time.Now().UTC(),
	}
}
