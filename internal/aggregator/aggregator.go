// Package aggregator polls the ledger's order books across all configured
// venues and assembles per-cycle rate snapshots for the detectors.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfall/xrparb/internal/domain"
)

// maxConcurrentFetches bounds the fan-out so a large pair catalog cannot
// flood the RPC endpoint (the client's rate limiter is the hard cap).
const maxConcurrentFetches = 8

// Aggregator fetches the best offer for every tracked pair on every venue
// that issues it, in parallel, and groups the results by venue-agnostic
// market key. Individual fetch failures degrade the snapshot rather than
// failing the cycle.
type Aggregator struct {
	gateway domain.LedgerGateway
	venues  map[string]domain.Venue
	pairs   []domain.TradingPair
	timeout time.Duration
	cache   domain.QuoteCache // optional write-through mirror, may be nil
	logger  *slog.Logger
}

// New creates an Aggregator over the given pair catalog.
func New(
	gateway domain.LedgerGateway,
	venues []domain.Venue,
	pairs []domain.TradingPair,
	quoteTimeout time.Duration,
	cache domain.QuoteCache,
	logger *slog.Logger,
) *Aggregator {
	byName := make(map[string]domain.Venue, len(venues))
	for _, v := range venues {
		byName[v.Name] = v
	}
	return &Aggregator{
		gateway: gateway,
		venues:  byName,
		pairs:   pairs,
		timeout: quoteTimeout,
		cache:   cache,
		logger:  logger.With(slog.String("component", "aggregator")),
	}
}

// Pairs returns the pair catalog the aggregator polls.
func (a *Aggregator) Pairs() []domain.TradingPair {
	return a.pairs
}

// FetchQuotes polls every pair concurrently and returns the snapshot of
// quotes that succeeded. A venue timing out or returning a dried-up book
// drops that venue's quote from the snapshot; the cycle only fails when no
// pair produced a usable quote.
func (a *Aggregator) FetchQuotes(ctx context.Context) (domain.QuoteSet, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	var (
		mu     sync.Mutex
		quotes []domain.RateQuote
		failed int
	)

	for _, pair := range a.pairs {
		pair := pair
		g.Go(func() error {
			q, err := a.fetchOne(ctx, pair)
			if err != nil {
				a.logger.WarnContext(ctx, "quote fetch failed",
					slog.String("pair", pair.String()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil // partial failure degrades, never aborts the group
			}

			mu.Lock()
			quotes = append(quotes, q)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregator: fetch quotes: %w", err)
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("aggregator: all %d quote fetches failed", len(a.pairs))
	}
	if failed > 0 {
		a.logger.DebugContext(ctx, "partial snapshot",
			slog.Int("fetched", len(quotes)),
			slog.Int("failed", failed),
		)
	}

	if a.cache != nil {
		if err := a.cache.SetQuotes(ctx, quotes); err != nil {
			a.logger.WarnContext(ctx, "quote cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	set := make(domain.QuoteSet)
	for _, q := range quotes {
		key := q.Pair.Market()
		set[key] = append(set[key], q)
	}
	return set, nil
}

// fetchOne pulls the best offer for a single pair at its venue.
func (a *Aggregator) fetchOne(ctx context.Context, pair domain.TradingPair) (domain.RateQuote, error) {
	venue, ok := a.venues[pair.Venue]
	if !ok {
		return domain.RateQuote{}, domain.Structural(
			fmt.Errorf("aggregator: %s: %w", pair.Venue, domain.ErrUnknownVenue))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	offers, err := a.gateway.GetOrderBook(ctx, pair.Base, pair.Quote, venue.Address)
	if err != nil {
		return domain.RateQuote{}, err
	}
	if len(offers) == 0 {
		return domain.RateQuote{}, fmt.Errorf("aggregator: empty book for %s", pair)
	}

	best := offers[0]
	q := domain.RateQuote{
		Pair:      pair,
		Rate:      best.Rate,
		Size:      best.Size,
		Timestamp: time.Now().UTC(),
	}
	if !q.Valid() {
		return domain.RateQuote{}, fmt.Errorf("aggregator: %s: %w", pair, domain.ErrMalformedQuote)
	}
	return q, nil
}
