package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfall/xrparb/internal/domain"
)

// quoteTTL bounds how long a cached quote outlives the cycle that produced
// it. Dashboards reading after this window see nothing rather than a stale
// rate.
const quoteTTL = 5 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes: one hash per
// venue-agnostic market at key "quotes:{BASE}/{QUOTE}", one field per venue
// holding the JSON-encoded quote.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(market domain.TradingPair) string {
	return "quotes:" + market.Market().String()
}

// SetQuotes mirrors one cycle's quotes into Redis, grouped by market.
func (qc *QuoteCache) SetQuotes(ctx context.Context, quotes []domain.RateQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	pipe := qc.rdb.Pipeline()
	keys := make(map[string]bool)
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("redis: marshal quote %s: %w", q.Pair, err)
		}
		key := quoteKey(q.Pair)
		pipe.HSet(ctx, key, q.Pair.Venue, data)
		keys[key] = true
	}
	for key := range keys {
		pipe.Expire(ctx, key, quoteTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quotes: %w", err)
	}
	return nil
}

// GetQuotes returns all venues' cached quotes for a market. It returns
// domain.ErrNotFound when nothing is cached.
func (qc *QuoteCache) GetQuotes(ctx context.Context, market domain.TradingPair) ([]domain.RateQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(market)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", market, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	quotes := make([]domain.RateQuote, 0, len(vals))
	for venue, raw := range vals {
		var q domain.RateQuote
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("redis: unmarshal quote %s@%s: %w", market, venue, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
