// Package detector finds arbitrage opportunities in rate snapshots: direct
// cross-venue spreads and triangular currency cycles with slippage decay.
package detector

import (
	"context"
	"log/slog"
	"sort"

	"github.com/quantfall/xrparb/internal/domain"
)

// Config holds the detection thresholds.
type Config struct {
	MinDirectProfitPct     float64
	MinTriangularProfitPct float64
	SlippageCoefficient    float64
	MaxSlippage            float64
	StartSize              float64
}

// Detector evaluates one quote snapshot per cycle. It is stateless between
// cycles: every opportunity is freshly derived from the snapshot it was
// given, never carried over.
type Detector struct {
	minDirectProfitPct     float64
	minTriangularProfitPct float64
	slippageCoefficient    float64
	maxSlippage            float64
	startSize              float64

	cycles []cycleOnVenue
	logger *slog.Logger
}

// cycleOnVenue is one configured currency cycle bound to a venue that
// issues all of its currencies.
type cycleOnVenue struct {
	currencies []string
	venue      string
}

// New creates a Detector. Cycles are bound to every venue that supports
// them; a cycle no venue supports is dropped with a warning.
func New(cfg Config, cycles [][]string, venues []domain.Venue, logger *slog.Logger) *Detector {
	d := &Detector{
		minDirectProfitPct:     cfg.MinDirectProfitPct,
		minTriangularProfitPct: cfg.MinTriangularProfitPct,
		slippageCoefficient:    cfg.SlippageCoefficient,
		maxSlippage:            cfg.MaxSlippage,
		startSize:              cfg.StartSize,
		logger:                 logger.With(slog.String("component", "detector")),
	}

	for _, cycle := range cycles {
		bound := false
		for _, v := range venues {
			if v.SupportsCycle(cycle) {
				d.cycles = append(d.cycles, cycleOnVenue{currencies: cycle, venue: v.Name})
				bound = true
			}
		}
		if !bound {
			logger.Warn("cycle not tradable on any venue", slog.Any("cycle", cycle))
		}
	}
	return d
}

// CyclePairs returns every leg pair the configured cycles need quoted, for
// inclusion in the aggregator's pair catalog.
func (d *Detector) CyclePairs() []domain.TradingPair {
	seen := make(map[domain.TradingPair]bool)
	var pairs []domain.TradingPair
	for _, c := range d.cycles {
		for _, leg := range domain.CycleLegs(c.currencies, c.venue) {
			if !seen[leg] {
				seen[leg] = true
				pairs = append(pairs, leg)
			}
		}
	}
	return pairs
}

// Detect runs both detectors over a snapshot and returns all opportunities
// clearing their thresholds, most profitable first.
func (d *Detector) Detect(ctx context.Context, quotes domain.QuoteSet) []domain.Opportunity {
	var opps []domain.Opportunity

	for market, qs := range quotes {
		if opp := d.detectDirect(market, qs); opp != nil {
			opps = append(opps, *opp)
		}
	}

	for _, c := range d.cycles {
		if opp := d.detectTriangular(c.currencies, c.venue, quotes); opp != nil {
			opps = append(opps, *opp)
		}
	}

	sort.Slice(opps, func(i, j int) bool {
		return opps[i].ProfitPct > opps[j].ProfitPct
	})

	if len(opps) > 0 {
		d.logger.InfoContext(ctx, "opportunities detected",
			slog.Int("count", len(opps)),
			slog.String("best", opps[0].Fingerprint()),
			slog.Float64("best_profit_pct", opps[0].ProfitPct),
		)
	}
	return opps
}
