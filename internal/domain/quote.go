package domain

import "time"

// RateQuote is the best offer for a pair at one venue at a point in time.
// Rate is quote units per base unit; Size is the liquidity available at that
// rate in base units. Quotes are produced fresh each poll and never mutated,
// only superseded by the next cycle's snapshot.
type RateQuote struct {
	Pair      TradingPair
	Rate      float64
	Size      float64
	Timestamp time.Time
}

// Valid reports whether the quote is usable: both rate and size must be
// strictly positive. A dried-up book is dropped, not carried as a zero-size
// quote.
func (q RateQuote) Valid() bool {
	return q.Rate > 0 && q.Size > 0
}

// QuoteSet is one cycle's consistent snapshot: all quotes grouped by
// venue-agnostic market key. Detectors read it; nothing writes to it after
// the fan-in completes.
type QuoteSet map[TradingPair][]RateQuote

// ForPair returns the quote for an exact (base, quote, venue) triple, if the
// snapshot holds one.
func (s QuoteSet) ForPair(p TradingPair) (RateQuote, bool) {
	for _, q := range s[p.Market()] {
		if q.Pair.Venue == p.Venue {
			return q, true
		}
	}
	return RateQuote{}, false
}
