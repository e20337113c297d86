package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfall/xrparb/internal/aggregator"
	"github.com/quantfall/xrparb/internal/detector"
	"github.com/quantfall/xrparb/internal/domain"
	"github.com/quantfall/xrparb/internal/metrics"
	"github.com/quantfall/xrparb/internal/position"
	"github.com/quantfall/xrparb/internal/risk"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeGateway serves a static two-venue book with a 2% spread.
type fakeGateway struct {
	books map[string][]domain.BookOffer
}

func (g *fakeGateway) GetOrderBook(_ context.Context, base, quote, issuer string) ([]domain.BookOffer, error) {
	return g.books[base+"/"+quote+"@"+issuer], nil
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

// fakeExecutor records what reaches it.
type fakeExecutor struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (f *fakeExecutor) Execute(_ context.Context, opp domain.Opportunity) (domain.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opps = append(f.opps, opp)
	return domain.ExecutionRecord{
		ID:     "exec-1",
		Status: domain.ExecValidated,
	}, nil
}

func (f *fakeExecutor) InFlightCount() int { return 0 }

func (f *fakeExecutor) executed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opps)
}

func arbGateway() *fakeGateway {
	return &fakeGateway{books: map[string][]domain.BookOffer{
		"XRP/USD@rB": {{Rate: 1.00, Size: 500}},
		"XRP/USD@rG": {{Rate: 1.02, Size: 300}},
	}}
}

func newTestEngine(g *fakeGateway, exec Executor, limits domain.RiskLimits) *Engine {
	venues := []domain.Venue{
		{Name: "bitstamp", Address: "rB", Currencies: []string{"USD"}},
		{Name: "gatehub", Address: "rG", Currencies: []string{"USD"}},
	}
	pairs := []domain.TradingPair{
		{Base: "XRP", Quote: "USD", Venue: "bitstamp"},
		{Base: "XRP", Quote: "USD", Venue: "gatehub"},
	}

	agg := aggregator.New(g, venues, pairs, time.Second, nil, testLogger)
	det := detector.New(detector.Config{
		MinDirectProfitPct:     0.08,
		MinTriangularProfitPct: 0.15,
		SlippageCoefficient:    0.1,
		MaxSlippage:            0.05,
		StartSize:              1000,
	}, nil, venues, testLogger)

	return New(
		agg,
		det,
		risk.New(limits),
		position.NewLedger(),
		exec,
		nil, // advisor
		nil, // opportunity store
		nil, // audit store
		nil, // bus
		nil, // notifier
		metrics.New(prometheus.NewRegistry()),
		Config{PollInterval: time.Hour, MaxConcurrent: 2},
		testLogger,
	)
}

func permissiveLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxPositionSize:    10_000,
		MaxDailyLoss:       1_000,
		MinProfitThreshold: 0.001,
		ApprovalThreshold:  0.7,
	}
}

func TestRunCycle_ApprovedOpportunityExecutes(t *testing.T) {
	exec := &fakeExecutor{}
	e := newTestEngine(arbGateway(), exec, permissiveLimits())

	e.runCycle(context.Background())
	e.wg.Wait()

	require.Equal(t, 1, exec.executed())
	assert.Equal(t, domain.OpportunityDirect, exec.opps[0].Type)
	assert.Equal(t, 300.0, exec.opps[0].Size)
}

func TestRunCycle_RejectedOpportunityNeverExecutes(t *testing.T) {
	exec := &fakeExecutor{}
	limits := permissiveLimits()
	limits.MinProfitThreshold = 100 // nothing clears this floor
	e := newTestEngine(arbGateway(), exec, limits)

	e.runCycle(context.Background())
	e.wg.Wait()

	assert.Zero(t, exec.executed())
}

func TestRunCycle_ObserveOnlyWithoutExecutor(t *testing.T) {
	e := newTestEngine(arbGateway(), nil, permissiveLimits())

	// Must not panic and must not spawn executions.
	e.runCycle(context.Background())
	e.wg.Wait()
}

func TestRunCycle_NoQuotesIsQuiet(t *testing.T) {
	exec := &fakeExecutor{}
	e := newTestEngine(&fakeGateway{books: map[string][]domain.BookOffer{}}, exec, permissiveLimits())

	e.runCycle(context.Background())
	e.wg.Wait()

	assert.Zero(t, exec.executed())
}

func TestReasonLabel(t *testing.T) {
	assert.Equal(t, "position_limit", reasonLabel("position limit: 1.00 + 2.00 exceeds 3.00"))
	assert.Equal(t, "daily_loss", reasonLabel("daily loss limit reached"))
	assert.Equal(t, "insufficient_profit", reasonLabel("insufficient profit potential"))
	assert.Equal(t, "risk_score", reasonLabel("risk score 0.812 at or above threshold 0.700"))
	assert.Equal(t, "other", reasonLabel("???"))
}
