package detector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/xrparb/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func defaultConfig() Config {
	return Config{
		MinDirectProfitPct:     0.08,
		MinTriangularProfitPct: 0.15,
		SlippageCoefficient:    0.1,
		MaxSlippage:            0.05,
		StartSize:              1000,
	}
}

func testVenues() []domain.Venue {
	return []domain.Venue{
		{Name: "bitstamp", Address: "rB", Currencies: []string{"USD", "BTC"}},
		{Name: "gatehub", Address: "rG", Currencies: []string{"USD", "EUR", "BTC"}},
	}
}

func quote(base, quote, venue string, rate, size float64) domain.RateQuote {
	return domain.RateQuote{
		Pair:      domain.TradingPair{Base: base, Quote: quote, Venue: venue},
		Rate:      rate,
		Size:      size,
		Timestamp: time.Now().UTC(),
	}
}

func snapshot(quotes ...domain.RateQuote) domain.QuoteSet {
	set := make(domain.QuoteSet)
	for _, q := range quotes {
		key := q.Pair.Market()
		set[key] = append(set[key], q)
	}
	return set
}

func TestDetectDirect_Spread(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	// Buy at 1.00 on bitstamp (500 available), sell at 1.02 on gatehub
	// (300 available): 2% spread, size capped by the thinner side.
	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.00, 500),
		quote("XRP", "USD", "gatehub", 1.02, 300),
	))

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, domain.OpportunityDirect, opp.Type)
	assert.Equal(t, "bitstamp", opp.BuyVenue)
	assert.Equal(t, "gatehub", opp.SellVenue)
	assert.Equal(t, 300.0, opp.Size)
	assert.InDelta(t, 2.0, opp.ProfitPct, 1e-9)
	assert.InDelta(t, 6.0, opp.ExpectedProfit, 1e-9)
}

func TestDetectDirect_BelowThreshold(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	// 0.05% spread is below the 0.08% floor.
	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.0000, 500),
		quote("XRP", "USD", "gatehub", 1.0005, 300),
	))
	assert.Empty(t, opps)
}

func TestDetectDirect_SingleVenue(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.00, 500),
	))
	assert.Empty(t, opps, "one quote per market cannot arb against itself")
}

func TestDetectDirect_EqualRatesTieBreakBySize(t *testing.T) {
	// Three venues: two share the best sell rate; the larger book wins.
	venues := append(testVenues(), domain.Venue{Name: "sologenic", Address: "rS", Currencies: []string{"USD"}})
	d := New(defaultConfig(), nil, venues, testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.00, 500),
		quote("XRP", "USD", "gatehub", 1.02, 300),
		quote("XRP", "USD", "sologenic", 1.02, 400),
	))

	require.Len(t, opps, 1)
	assert.Equal(t, "sologenic", opps[0].SellVenue)
	assert.Equal(t, 400.0, opps[0].Size)
}

func TestDetectDirect_SkipsInvalidQuotes(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.00, 500),
		quote("XRP", "USD", "gatehub", 0, 0), // dried-up book
	))
	assert.Empty(t, opps)
}

func TestDetectDirect_InvalidFirstQuoteDoesNotMaskSpread(t *testing.T) {
	// A dried-up book at the head of the group must not seed the extremes;
	// the genuine spread between the remaining venues still surfaces.
	venues := append(testVenues(), domain.Venue{Name: "sologenic", Address: "rS", Currencies: []string{"USD"}})
	d := New(defaultConfig(), nil, venues, testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "sologenic", 0, 0), // dried-up book first
		quote("XRP", "USD", "bitstamp", 1.00, 500),
		quote("XRP", "USD", "gatehub", 1.02, 300),
	))

	require.Len(t, opps, 1)
	assert.Equal(t, "bitstamp", opps[0].BuyVenue)
	assert.Equal(t, "gatehub", opps[0].SellVenue)
	assert.Equal(t, 300.0, opps[0].Size)
}

func TestDetectDirect_AllQuotesInvalid(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 0, 0),
		quote("XRP", "USD", "gatehub", 0, 0),
	))
	assert.Empty(t, opps)
}

func TestDetectTriangular_ProfitableCycle(t *testing.T) {
	cfg := defaultConfig()
	cfg.SlippageCoefficient = 0 // isolate the rate product
	d := New(cfg, [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

	// 1000 XRP -> 2000 USD -> 1000 EUR -> 1010 XRP: +1.0%.
	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "gatehub", 2.0, 1e9),
		quote("USD", "EUR", "gatehub", 0.5, 1e9),
		quote("EUR", "XRP", "gatehub", 1.01, 1e9),
	))

	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, domain.OpportunityTriangular, opp.Type)
	assert.Equal(t, "gatehub", opp.Venue)
	assert.Equal(t, 1000.0, opp.StartSize)
	assert.InDelta(t, 1010.0, opp.FinalSize, 1e-6)
	assert.InDelta(t, 10.0, opp.ExpectedProfit, 1e-6)
	assert.InDelta(t, 1.0, opp.ProfitPct, 1e-9)
	assert.Equal(t, []float64{2.0, 0.5, 1.01}, opp.LegRates)
}

func TestDetectTriangular_SlippageErodesProfit(t *testing.T) {
	cfg := defaultConfig()
	d := New(cfg, [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

	// Same rates as the profitable cycle, but thin books: pushing 1000
	// through 2000-deep legs costs 0.05 slippage per leg (the cap) and the
	// 1% gross margin is gone.
	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "gatehub", 2.0, 2000),
		quote("USD", "EUR", "gatehub", 0.5, 2000),
		quote("EUR", "XRP", "gatehub", 1.01, 2000),
	))
	assert.Empty(t, opps)
}

func TestDetectTriangular_ProfitNonIncreasingInCoefficient(t *testing.T) {
	books := snapshot(
		quote("XRP", "USD", "gatehub", 2.0, 50_000),
		quote("USD", "EUR", "gatehub", 0.5, 50_000),
		quote("EUR", "XRP", "gatehub", 1.01, 50_000),
	)

	prev := 1e18
	for _, coeff := range []float64{0, 0.05, 0.1, 0.2, 0.5} {
		cfg := defaultConfig()
		cfg.SlippageCoefficient = coeff
		cfg.MinTriangularProfitPct = -100 // keep every result visible
		d := New(cfg, [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

		opps := d.Detect(context.Background(), books)
		require.Len(t, opps, 1, "coeff %v", coeff)
		assert.LessOrEqual(t, opps[0].ProfitPct, prev, "coeff %v", coeff)
		prev = opps[0].ProfitPct
	}
}

func TestDetectTriangular_SlippageCapped(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinTriangularProfitPct = -100 // let everything through to inspect rates
	d := New(cfg, [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

	// First leg: size 1000 into a book of 100 gives raw slip 1.0, capped
	// to maxSlippage 0.05, so the effective rate is 2.0*0.95.
	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "gatehub", 2.0, 100),
		quote("USD", "EUR", "gatehub", 0.5, 1e9),
		quote("EUR", "XRP", "gatehub", 1.01, 1e9),
	))

	require.Len(t, opps, 1)
	assert.InDelta(t, 2.0*0.95, opps[0].LegRates[0], 1e-9)
}

func TestDetectTriangular_MissingLegKillsCycle(t *testing.T) {
	d := New(defaultConfig(), [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "gatehub", 2.0, 1e9),
		quote("EUR", "XRP", "gatehub", 1.01, 1e9),
	))
	assert.Empty(t, opps)
}

func TestDetect_CycleBindingSkipsUnsupportedVenues(t *testing.T) {
	// bitstamp does not issue EUR, so the cycle binds to gatehub only.
	d := New(defaultConfig(), [][]string{{"XRP", "USD", "EUR"}}, testVenues(), testLogger)

	pairs := d.CyclePairs()
	for _, p := range pairs {
		assert.Equal(t, "gatehub", p.Venue)
	}
	assert.Len(t, pairs, 3)
}

func TestDetect_SortedByProfit(t *testing.T) {
	d := New(defaultConfig(), nil, testVenues(), testLogger)

	opps := d.Detect(context.Background(), snapshot(
		quote("XRP", "USD", "bitstamp", 1.00, 500),
		quote("XRP", "USD", "gatehub", 1.02, 300),
		quote("XRP", "BTC", "bitstamp", 1.00, 500),
		quote("XRP", "BTC", "gatehub", 1.05, 300),
	))

	require.Len(t, opps, 2)
	assert.Greater(t, opps[0].ProfitPct, opps[1].ProfitPct)
}
