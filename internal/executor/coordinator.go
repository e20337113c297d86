// Package executor turns approved opportunities into ledger payments:
// path discovery, submission with bounded retries, validation tracking,
// and best-effort unwinding of partially executed cycles.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/xrparb/internal/domain"
)

// baseReserve is the native-currency amount the ledger locks per account;
// it can never be spent on trades or fees.
const baseReserve = 10.0

// feeHeadroom is the native balance kept free for transaction fees on top
// of the reserve.
const feeHeadroom = 1.0

// PositionUpdater receives exactly one update per validated execution.
type PositionUpdater interface {
	Update(pair domain.TradingPair, size, profit float64) domain.PositionSnapshot
}

// Config holds the coordinator's tunables.
type Config struct {
	Account          string
	SendMaxBufferPct float64 // send_max inflation over the quoted cost, in percent
	Backoff          Backoff
	MaxAttempts      int
	ConfirmTimeout   time.Duration
	StalenessWindow  time.Duration
}

// Coordinator drives the per-opportunity state machine
// Pending -> PathFound -> Submitted -> {Validated, Failed} and, for
// multi-leg cycles where a later leg fails after an earlier one settled,
// the Stuck terminal state. Executions for different fingerprints may run
// concurrently; the in-flight guard serializes per fingerprint.
type Coordinator struct {
	gateway   domain.LedgerGateway
	venues    map[string]domain.Venue
	cfg       Config
	inflight  *InFlight
	positions PositionUpdater
	execStore domain.ExecutionStore // optional, may be nil
	tradeStore domain.TradeStore    // optional, may be nil
	logger    *slog.Logger

	statsMu sync.Mutex
	stats   domain.ExecStats
}

// New creates a Coordinator.
func New(
	gateway domain.LedgerGateway,
	venues []domain.Venue,
	cfg Config,
	positions PositionUpdater,
	execStore domain.ExecutionStore,
	tradeStore domain.TradeStore,
	logger *slog.Logger,
) *Coordinator {
	byName := make(map[string]domain.Venue, len(venues))
	for _, v := range venues {
		byName[v.Name] = v
	}
	return &Coordinator{
		gateway:    gateway,
		venues:     byName,
		cfg:        cfg,
		inflight:   NewInFlight(),
		positions:  positions,
		execStore:  execStore,
		tradeStore: tradeStore,
		logger:     logger.With(slog.String("component", "executor")),
	}
}

// Stats returns a copy of the running execution counters.
func (c *Coordinator) Stats() domain.ExecStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// InFlightCount returns how many executions are currently live.
func (c *Coordinator) InFlightCount() int {
	return c.inflight.Len()
}

// Execute runs one approved opportunity to a terminal state and returns its
// record. Stale opportunities and fingerprints already in flight are
// rejected before any ledger call. The position ledger is updated exactly
// once, only for validated executions.
func (c *Coordinator) Execute(ctx context.Context, opp domain.Opportunity) (domain.ExecutionRecord, error) {
	now := time.Now().UTC()
	if opp.Stale(now, c.cfg.StalenessWindow) {
		return domain.ExecutionRecord{}, domain.Structural(
			fmt.Errorf("executor: %s detected %s ago: %w",
				opp.Fingerprint(), now.Sub(opp.DetectedAt).Round(time.Millisecond), domain.ErrStaleOpportunity))
	}

	fp := opp.Fingerprint()
	if !c.inflight.Acquire(fp) {
		return domain.ExecutionRecord{}, fmt.Errorf("executor: %s: %w", fp, domain.ErrInFlight)
	}
	defer c.inflight.Release(fp)

	rec := domain.ExecutionRecord{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		Fingerprint:   fp,
		Type:          opp.Type,
		Pair:          recordPair(opp),
		Size:          opp.Size,
		Status:        domain.ExecPending,
		StartedAt:     now,
	}

	log := c.logger.With(
		slog.String("execution_id", rec.ID),
		slog.String("fingerprint", fp),
		slog.String("type", string(opp.Type)),
	)
	log.InfoContext(ctx, "execution started",
		slog.Float64("size", opp.Size),
		slog.Float64("expected_profit", opp.ExpectedProfit),
	)

	if c.execStore != nil {
		if err := c.execStore.Create(ctx, rec); err != nil {
			log.WarnContext(ctx, "execution record create failed", slog.String("error", err.Error()))
		}
	}

	execErr := c.preflight(ctx, opp)
	if execErr == nil {
		switch opp.Type {
		case domain.OpportunityDirect:
			execErr = c.executeDirect(ctx, &rec, opp)
		case domain.OpportunityTriangular:
			execErr = c.executeTriangular(ctx, &rec, opp, log)
		default:
			execErr = domain.Structural(fmt.Errorf("executor: unknown opportunity type %q", opp.Type))
		}
	}

	c.finalize(ctx, &rec, opp, execErr, log)
	return rec, execErr
}

// recordPair picks the market key an execution is booked under.
func recordPair(opp domain.Opportunity) domain.TradingPair {
	if opp.Type == domain.OpportunityTriangular && len(opp.Cycle) > 0 {
		return opp.Cycle[0].Market()
	}
	return opp.Pair.Market()
}

// preflight verifies the trading account can fund the trade before any
// payment is built. A balance below the reserve plus fee headroom is a
// structural rejection.
func (c *Coordinator) preflight(ctx context.Context, opp domain.Opportunity) error {
	acct, err := c.gateway.GetAccountInfo(ctx, c.cfg.Account)
	if err != nil {
		return domain.Transient(fmt.Errorf("executor: preflight: %w", err))
	}

	spendable := acct.Balance - baseReserve - feeHeadroom
	if spendable <= 0 {
		return domain.Structural(fmt.Errorf("executor: balance %.2f below reserve: %w",
			acct.Balance, domain.ErrInsufficientFunds))
	}
	if startsNative(opp) && opp.Size > spendable {
		return domain.Structural(fmt.Errorf("executor: size %.2f exceeds spendable %.2f: %w",
			opp.Size, spendable, domain.ErrInsufficientFunds))
	}
	return nil
}

// startsNative reports whether the trade spends the native currency first.
func startsNative(opp domain.Opportunity) bool {
	if opp.Type == domain.OpportunityTriangular {
		return len(opp.Cycle) > 0 && opp.Cycle[0].Base == domain.NativeCurrency
	}
	return opp.Pair.Base == domain.NativeCurrency
}

// executeDirect realizes a cross-venue spread as one self-payment: deliver
// the sale proceeds in the sell venue's issuance, spending at most the
// purchase cost (plus buffer) in the buy venue's issuance.
func (c *Coordinator) executeDirect(ctx context.Context, rec *domain.ExecutionRecord, opp domain.Opportunity) error {
	buyVenue, ok := c.venues[opp.BuyVenue]
	if !ok {
		return domain.Structural(fmt.Errorf("executor: buy venue %q: %w", opp.BuyVenue, domain.ErrUnknownVenue))
	}
	sellVenue, ok := c.venues[opp.SellVenue]
	if !ok {
		return domain.Structural(fmt.Errorf("executor: sell venue %q: %w", opp.SellVenue, domain.ErrUnknownVenue))
	}

	deliver := opp.Size * opp.SellRate
	sendMax := opp.Size * opp.BuyRate * (1 + c.cfg.SendMaxBufferPct/100)

	path, err := c.findPath(ctx, opp.Pair.Quote, issuerFor(opp.Pair.Quote, sellVenue), deliver)
	if err != nil {
		return err
	}
	rec.Status = domain.ExecPathFound

	req := domain.PaymentRequest{
		Destination:     c.cfg.Account,
		Currency:        opp.Pair.Quote,
		Issuer:          issuerFor(opp.Pair.Quote, sellVenue),
		Amount:          deliver,
		SendMaxCurrency: opp.Pair.Quote,
		SendMaxIssuer:   issuerFor(opp.Pair.Quote, buyVenue),
		SendMax:         sendMax,
		Paths:           path,
	}
	return c.submitWithRetry(ctx, rec, req, 0, false)
}

// executeTriangular pushes the notional through the cycle's legs
// sequentially. A first-leg failure is clean; a later-leg failure leaves
// residual exposure and triggers a best-effort unwind back to the start
// currency. An unwind that itself fails marks the record stuck.
func (c *Coordinator) executeTriangular(ctx context.Context, rec *domain.ExecutionRecord, opp domain.Opportunity, log *slog.Logger) error {
	venue, ok := c.venues[opp.Venue]
	if !ok {
		return domain.Structural(fmt.Errorf("executor: venue %q: %w", opp.Venue, domain.ErrUnknownVenue))
	}
	if len(opp.Cycle) != len(opp.LegRates) || len(opp.Cycle) == 0 {
		return domain.Structural(fmt.Errorf("executor: cycle/rate length mismatch for %s", opp.ID))
	}

	running := opp.StartSize
	for i, leg := range opp.Cycle {
		deliver := running * opp.LegRates[i]
		sendMax := running * (1 + c.cfg.SendMaxBufferPct/100)

		err := func() error {
			path, err := c.findPath(ctx, leg.Quote, issuerFor(leg.Quote, venue), deliver)
			if err != nil {
				return err
			}
			if i == 0 {
				rec.Status = domain.ExecPathFound
			}

			req := domain.PaymentRequest{
				Destination:     c.cfg.Account,
				Currency:        leg.Quote,
				Issuer:          issuerFor(leg.Quote, venue),
				Amount:          deliver,
				SendMaxCurrency: leg.Base,
				SendMaxIssuer:   issuerFor(leg.Base, venue),
				SendMax:         sendMax,
				Paths:           path,
			}
			return c.submitWithRetry(ctx, rec, req, i, false)
		}()

		if err != nil {
			if i == 0 {
				return fmt.Errorf("executor: leg 0 failed: %w", err)
			}

			log.WarnContext(ctx, "leg failed after settled legs, unwinding",
				slog.Int("leg", i),
				slog.String("error", err.Error()),
			)
			if uerr := c.unwind(ctx, rec, opp, venue, i, running); uerr != nil {
				rec.Status = domain.ExecStuck
				return fmt.Errorf("executor: leg %d failed (%v), unwind failed: %w", i, err, uerr)
			}
			return fmt.Errorf("executor: leg %d failed, position unwound: %w", i, err)
		}

		running = deliver
	}
	return nil
}

// unwind converts the currency held after failedLeg back to the cycle's
// start currency in one payment. The delivery target is implied by the
// remaining legs' composed rate, discounted by the send-max buffer; the
// goal is recovering exposure, not profit.
func (c *Coordinator) unwind(ctx context.Context, rec *domain.ExecutionRecord, opp domain.Opportunity, venue domain.Venue, failedLeg int, held float64) error {
	heldCurrency := opp.Cycle[failedLeg].Base
	startCurrency := opp.Cycle[0].Base

	implied := held
	for i := failedLeg; i < len(opp.LegRates); i++ {
		implied *= opp.LegRates[i]
	}
	deliver := implied * (1 - c.cfg.SendMaxBufferPct/100)

	path, err := c.findPath(ctx, startCurrency, issuerFor(startCurrency, venue), deliver)
	if err != nil {
		return err
	}

	req := domain.PaymentRequest{
		Destination:     c.cfg.Account,
		Currency:        startCurrency,
		Issuer:          issuerFor(startCurrency, venue),
		Amount:          deliver,
		SendMaxCurrency: heldCurrency,
		SendMaxIssuer:   issuerFor(heldCurrency, venue),
		SendMax:         held,
		Paths:           path,
	}
	return c.submitWithRetry(ctx, rec, req, failedLeg, true)
}

// findPath runs path discovery for one delivery. No route is a structural
// condition: the opportunity is gone and retrying the same snapshot cannot
// bring it back.
func (c *Coordinator) findPath(ctx context.Context, currency, issuer string, amount float64) ([]byte, error) {
	alts, err := c.gateway.FindPaths(ctx, c.cfg.Account, currency, issuer, amount)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("executor: find paths: %w", err))
	}
	if len(alts) == 0 {
		return nil, domain.Structural(fmt.Errorf("executor: deliver %.4f %s: %w", amount, currency, domain.ErrNoPath))
	}
	return alts[0].Path, nil
}

// submitWithRetry submits one payment with bounded exponential backoff on
// transient failures. Once a submission has produced a transaction hash it
// is never re-submitted: an ambiguous validation outcome fails the
// execution rather than risking a duplicate payment.
func (c *Coordinator) submitWithRetry(ctx context.Context, rec *domain.ExecutionRecord, req domain.PaymentRequest, leg int, unwinding bool) error {
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Transient(fmt.Errorf("executor: retry wait: %w", ctx.Err()))
			case <-time.After(c.cfg.Backoff.Delay(attempt - 1)):
			}
		}
		rec.Attempts++

		res, err := c.gateway.SubmitPayment(ctx, req)
		if res.Hash != "" {
			rec.Receipts = append(rec.Receipts, domain.TxReceipt{
				Hash:   res.Hash,
				Leg:    leg,
				Unwind: unwinding,
			})
		}
		if err != nil {
			if domain.IsStructural(err) {
				return err
			}
			if res.Hash != "" {
				// A queued (ter-class) result still carries a hash: the
				// transaction exists on the network and may yet apply.
				// Resubmitting would risk a duplicate payment, so resolve
				// this hash instead of retrying.
				rec.Status = domain.ExecSubmitted
				return c.confirm(ctx, rec, res.Hash, false)
			}
			lastErr = err
			continue
		}

		rec.Status = domain.ExecSubmitted
		return c.confirm(ctx, rec, res.Hash, res.Validated)
	}

	return domain.Transient(fmt.Errorf("executor: %d attempts exhausted: %w", c.cfg.MaxAttempts, lastErr))
}

// confirm resolves a submitted transaction to validated or failed. It is the
// only exit once a hash exists; the payment is never rebuilt or resubmitted.
func (c *Coordinator) confirm(ctx context.Context, rec *domain.ExecutionRecord, hash string, validated bool) error {
	if !validated {
		var err error
		validated, err = c.gateway.AwaitValidation(ctx, hash, c.cfg.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("executor: confirm %s: %w", hash, err)
		}
	}
	if !validated {
		return fmt.Errorf("executor: tx %s not validated within %s", hash, c.cfg.ConfirmTimeout)
	}

	for i := range rec.Receipts {
		if rec.Receipts[i].Hash == hash {
			rec.Receipts[i].Validated = true
		}
	}
	return nil
}

// finalize moves the record to its terminal status, persists it, updates
// counters, and reports validated executions to the position ledger exactly
// once.
func (c *Coordinator) finalize(ctx context.Context, rec *domain.ExecutionRecord, opp domain.Opportunity, execErr error, log *slog.Logger) {
	now := time.Now().UTC()
	rec.CompletedAt = &now

	switch {
	case execErr == nil:
		rec.Status = domain.ExecValidated
		rec.RealizedProfit = opp.ExpectedProfit
	case rec.Status == domain.ExecStuck:
		rec.LastError = execErr.Error()
	default:
		rec.Status = domain.ExecFailed
		rec.LastError = execErr.Error()
	}

	c.statsMu.Lock()
	c.stats.Executed++
	switch rec.Status {
	case domain.ExecValidated:
		c.stats.Succeeded++
		c.stats.TotalProfit += rec.RealizedProfit
	case domain.ExecStuck:
		c.stats.Stuck++
	default:
		c.stats.Failed++
	}
	c.statsMu.Unlock()

	if c.execStore != nil {
		if err := c.execStore.Finalize(ctx, *rec); err != nil {
			log.WarnContext(ctx, "execution record finalize failed", slog.String("error", err.Error()))
		}
	}

	if rec.Status != domain.ExecValidated {
		log.WarnContext(ctx, "execution finished",
			slog.String("status", string(rec.Status)),
			slog.String("error", rec.LastError),
			slog.Int("attempts", rec.Attempts),
		)
		return
	}

	latency := now.Sub(rec.StartedAt).Seconds()
	c.positions.Update(rec.Pair, rec.Size, rec.RealizedProfit)

	if c.tradeStore != nil {
		trade := domain.TradeRecord{
			Timestamp:      now,
			Pair:           rec.Pair,
			Size:           rec.Size,
			Profit:         rec.RealizedProfit,
			LatencySeconds: latency,
		}
		if err := c.tradeStore.Insert(ctx, trade); err != nil {
			log.WarnContext(ctx, "trade record insert failed", slog.String("error", err.Error()))
		}
	}

	log.InfoContext(ctx, "execution validated",
		slog.Float64("profit", rec.RealizedProfit),
		slog.Float64("latency_s", latency),
		slog.Int("attempts", rec.Attempts),
	)
}

// issuerFor returns the venue's address for issued currencies and the empty
// issuer for the native one.
func issuerFor(currency string, venue domain.Venue) string {
	if currency == domain.NativeCurrency {
		return ""
	}
	return venue.Address
}
