package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/xrparb/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeGateway serves scripted order books keyed by "BASE/QUOTE@issuer".
type fakeGateway struct {
	mu    sync.Mutex
	books map[string][]domain.BookOffer
	errs  map[string]error
	calls int
}

func bookKey(base, quote, issuer string) string {
	return base + "/" + quote + "@" + issuer
}

func (g *fakeGateway) GetOrderBook(_ context.Context, base, quote, issuer string) ([]domain.BookOffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	key := bookKey(base, quote, issuer)
	if err := g.errs[key]; err != nil {
		return nil, err
	}
	return g.books[key], nil
}

func (g *fakeGateway) FindPaths(context.Context, string, string, string, float64) ([]domain.PathAlternative, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) SubmitPayment(context.Context, domain.PaymentRequest) (domain.SubmitResult, error) {
	return domain.SubmitResult{}, errors.New("not used")
}

func (g *fakeGateway) AwaitValidation(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("not used")
}

func (g *fakeGateway) GetAccountInfo(context.Context, string) (domain.AccountState, error) {
	return domain.AccountState{}, errors.New("not used")
}

// recordingCache captures write-through quotes.
type recordingCache struct {
	mu     sync.Mutex
	quotes []domain.RateQuote
}

func (c *recordingCache) SetQuotes(_ context.Context, quotes []domain.RateQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = append(c.quotes, quotes...)
	return nil
}

func (c *recordingCache) GetQuotes(context.Context, domain.TradingPair) ([]domain.RateQuote, error) {
	return nil, domain.ErrNotFound
}

func testVenues() []domain.Venue {
	return []domain.Venue{
		{Name: "bitstamp", Address: "rB", Currencies: []string{"USD"}},
		{Name: "gatehub", Address: "rG", Currencies: []string{"USD"}},
	}
}

func testPairs() []domain.TradingPair {
	return []domain.TradingPair{
		{Base: "XRP", Quote: "USD", Venue: "bitstamp"},
		{Base: "XRP", Quote: "USD", Venue: "gatehub"},
	}
}

func TestFetchQuotes_GroupsByMarket(t *testing.T) {
	g := &fakeGateway{books: map[string][]domain.BookOffer{
		bookKey("XRP", "USD", "rB"): {{Rate: 1.00, Size: 500}},
		bookKey("XRP", "USD", "rG"): {{Rate: 1.02, Size: 300}},
	}}
	a := New(g, testVenues(), testPairs(), time.Second, nil, testLogger)

	set, err := a.FetchQuotes(context.Background())
	require.NoError(t, err)

	market := domain.TradingPair{Base: "XRP", Quote: "USD"}
	require.Len(t, set[market], 2, "both venues grouped under one market key")

	rates := map[string]float64{}
	for _, q := range set[market] {
		rates[q.Pair.Venue] = q.Rate
	}
	assert.Equal(t, 1.00, rates["bitstamp"])
	assert.Equal(t, 1.02, rates["gatehub"])
}

func TestFetchQuotes_PartialFailureDegrades(t *testing.T) {
	g := &fakeGateway{
		books: map[string][]domain.BookOffer{
			bookKey("XRP", "USD", "rB"): {{Rate: 1.00, Size: 500}},
		},
		errs: map[string]error{
			bookKey("XRP", "USD", "rG"): errors.New("timeout"),
		},
	}
	a := New(g, testVenues(), testPairs(), time.Second, nil, testLogger)

	set, err := a.FetchQuotes(context.Background())
	require.NoError(t, err, "one venue failing must not fail the cycle")

	market := domain.TradingPair{Base: "XRP", Quote: "USD"}
	require.Len(t, set[market], 1)
	assert.Equal(t, "bitstamp", set[market][0].Pair.Venue)
}

func TestFetchQuotes_AllFailedErrors(t *testing.T) {
	g := &fakeGateway{errs: map[string]error{
		bookKey("XRP", "USD", "rB"): errors.New("down"),
		bookKey("XRP", "USD", "rG"): errors.New("down"),
	}}
	a := New(g, testVenues(), testPairs(), time.Second, nil, testLogger)

	_, err := a.FetchQuotes(context.Background())
	assert.Error(t, err)
}

func TestFetchQuotes_EmptyBookDropped(t *testing.T) {
	g := &fakeGateway{books: map[string][]domain.BookOffer{
		bookKey("XRP", "USD", "rB"): {{Rate: 1.00, Size: 500}},
		bookKey("XRP", "USD", "rG"): {}, // dried up
	}}
	a := New(g, testVenues(), testPairs(), time.Second, nil, testLogger)

	set, err := a.FetchQuotes(context.Background())
	require.NoError(t, err)

	market := domain.TradingPair{Base: "XRP", Quote: "USD"}
	assert.Len(t, set[market], 1)
}

func TestFetchQuotes_WritesThroughCache(t *testing.T) {
	g := &fakeGateway{books: map[string][]domain.BookOffer{
		bookKey("XRP", "USD", "rB"): {{Rate: 1.00, Size: 500}},
		bookKey("XRP", "USD", "rG"): {{Rate: 1.02, Size: 300}},
	}}
	cache := &recordingCache{}
	a := New(g, testVenues(), testPairs(), time.Second, cache, testLogger)

	_, err := a.FetchQuotes(context.Background())
	require.NoError(t, err)
	assert.Len(t, cache.quotes, 2)
}

func TestFetchQuotes_UnknownVenueSkipped(t *testing.T) {
	g := &fakeGateway{books: map[string][]domain.BookOffer{
		bookKey("XRP", "USD", "rB"): {{Rate: 1.00, Size: 500}},
	}}
	pairs := append(testPairs(), domain.TradingPair{Base: "XRP", Quote: "USD", Venue: "ghost"})
	a := New(g, testVenues(), pairs, time.Second, nil, testLogger)

	set, err := a.FetchQuotes(context.Background())
	require.NoError(t, err)
	for _, qs := range set {
		for _, q := range qs {
			assert.NotEqual(t, "ghost", q.Pair.Venue)
		}
	}
}
