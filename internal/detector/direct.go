package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/xrparb/internal/domain"
)

// detectDirect scans one market's quotes for a cross-venue spread: buy at
// the venue with the lowest rate, sell at the venue with the highest. The
// executable size is capped by the thinner side's liquidity.
func (d *Detector) detectDirect(market domain.TradingPair, quotes []domain.RateQuote) *domain.Opportunity {
	if len(quotes) < 2 {
		return nil
	}

	// Seed from the first valid quote so an invalid one cannot pin the
	// extremes.
	seed := -1
	for i, q := range quotes {
		if q.Valid() {
			seed = i
			break
		}
	}
	if seed < 0 {
		return nil
	}

	buy, sell := quotes[seed], quotes[seed]
	for _, q := range quotes[seed+1:] {
		if !q.Valid() {
			continue
		}
		if q.Rate < buy.Rate || (q.Rate == buy.Rate && q.Size > buy.Size) {
			buy = q
		}
		if q.Rate > sell.Rate || (q.Rate == sell.Rate && q.Size > sell.Size) {
			sell = q
		}
	}

	if buy.Pair.Venue == sell.Pair.Venue {
		return nil
	}

	profitPct := (sell.Rate - buy.Rate) / buy.Rate * 100
	if profitPct < d.minDirectProfitPct {
		return nil
	}

	size := buy.Size
	if sell.Size < size {
		size = sell.Size
	}

	return &domain.Opportunity{
		ID:             uuid.NewString(),
		Type:           domain.OpportunityDirect,
		Pair:           market.Market(),
		BuyVenue:       buy.Pair.Venue,
		SellVenue:      sell.Pair.Venue,
		BuyRate:        buy.Rate,
		SellRate:       sell.Rate,
		Size:           size,
		ExpectedProfit: size * (sell.Rate - buy.Rate),
		ProfitPct:      profitPct,
		DetectedAt:     time.Now().UTC(),
	}
}
