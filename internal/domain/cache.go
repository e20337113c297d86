package domain

import "context"

// QuoteCache is a write-through mirror of the latest per-pair quotes for
// dashboards and external consumers. The trading cycle itself works off its
// in-memory snapshot; the cache is observability only.
type QuoteCache interface {
	SetQuotes(ctx context.Context, quotes []RateQuote) error
	GetQuotes(ctx context.Context, market TradingPair) ([]RateQuote, error)
}

// SignalBus is the pub/sub fabric for opportunity, trade, and error events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Advisor is an optional capability that hints at confidence in an approved
// opportunity, in [0,1]. The pipeline may use the hint to rank candidates but
// must never let it change an approve/reject decision.
type Advisor interface {
	Advise(ctx context.Context, opp Opportunity) (float64, error)
}
