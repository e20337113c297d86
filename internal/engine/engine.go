// Package engine drives the trading cycle: fetch a quote snapshot, detect
// opportunities, gate them through risk, and hand approved candidates to
// the executor.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfall/xrparb/internal/aggregator"
	"github.com/quantfall/xrparb/internal/detector"
	"github.com/quantfall/xrparb/internal/domain"
	"github.com/quantfall/xrparb/internal/metrics"
	"github.com/quantfall/xrparb/internal/position"
	"github.com/quantfall/xrparb/internal/risk"
)

// Executor is the engine's view of the execution coordinator.
type Executor interface {
	Execute(ctx context.Context, opp domain.Opportunity) (domain.ExecutionRecord, error)
	InFlightCount() int
}

// Notifier is the engine's view of the alerting fan-out.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the engine's loop parameters.
type Config struct {
	PollInterval  time.Duration
	MaxConcurrent int
}

// Engine owns the polling loop. Detection and risk scoring run
// synchronously within a cycle over one consistent snapshot; executions
// run concurrently across distinct opportunities, bounded by a semaphore.
type Engine struct {
	agg       *aggregator.Aggregator
	det       *detector.Detector
	assessor  *risk.Assessor
	positions *position.Ledger
	executor  Executor // nil when the engine only observes

	advisor  domain.Advisor          // optional
	oppStore domain.OpportunityStore // optional
	audit    domain.AuditStore       // optional
	bus      domain.SignalBus        // optional
	notifier Notifier                // optional
	metrics  *metrics.Metrics

	cfg     Config
	logger  *slog.Logger
	execSem chan struct{}
	wg      sync.WaitGroup

	lastCycle atomic.Int64 // unix nanos of the last completed cycle
	errCount  atomic.Int64
}

// LastCycle returns when the most recent cycle completed, zero before the
// first one.
func (e *Engine) LastCycle() time.Time {
	ns := e.lastCycle.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// ErrorCount returns the number of component errors recorded since start.
func (e *Engine) ErrorCount() int64 {
	return e.errCount.Load()
}

// New creates an Engine. executor may be nil for detection-only operation;
// advisor, oppStore, audit, bus, and notifier are optional.
func New(
	agg *aggregator.Aggregator,
	det *detector.Detector,
	assessor *risk.Assessor,
	positions *position.Ledger,
	executor Executor,
	advisor domain.Advisor,
	oppStore domain.OpportunityStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier Notifier,
	m *metrics.Metrics,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Engine{
		agg:       agg,
		det:       det,
		assessor:  assessor,
		positions: positions,
		executor:  executor,
		advisor:   advisor,
		oppStore:  oppStore,
		audit:     audit,
		bus:       bus,
		notifier:  notifier,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "engine")),
		execSem:   make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run drives trading cycles until the context is cancelled, then waits for
// in-flight executions to finish before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.Duration("poll_interval", e.cfg.PollInterval),
		slog.Bool("trading", e.executor != nil),
	)
	defer e.logger.Info("engine stopped")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// First cycle immediately; the ticker paces the rest.
	e.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

// runCycle executes one fetch -> detect -> assess -> execute pass.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()
	defer func() {
		e.metrics.Cycles.Inc()
		e.metrics.CycleDuration.Observe(time.Since(start).Seconds())
		e.lastCycle.Store(time.Now().UnixNano())
	}()

	quotes, err := e.agg.FetchQuotes(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "quote snapshot failed", slog.String("error", err.Error()))
		e.logAudit(ctx, "aggregator", err.Error(), "error")
		return
	}

	total := 0
	for _, qs := range quotes {
		total += len(qs)
	}
	e.metrics.QuotesFetched.Set(float64(total))

	opps := e.det.Detect(ctx, quotes)
	if len(opps) == 0 {
		return
	}

	snapshot := e.positions.Snapshot()
	e.metrics.DailyPnL.Set(snapshot.DailyPnL)

	var approved []scored
	for _, opp := range opps {
		e.metrics.Opportunities.WithLabelValues(string(opp.Type)).Inc()
		e.recordOpportunity(ctx, opp)

		assessment := e.assessor.Assess(opp, snapshot)
		if !assessment.Approved {
			e.metrics.Rejections.WithLabelValues(reasonLabel(assessment.Reason)).Inc()
			e.logger.DebugContext(ctx, "opportunity rejected",
				slog.String("fingerprint", opp.Fingerprint()),
				slog.Float64("score", assessment.Score),
				slog.String("reason", assessment.Reason),
			)
			continue
		}

		confidence := 0.5
		if e.advisor != nil {
			if c, err := e.advisor.Advise(ctx, opp); err == nil {
				confidence = c
			}
		}
		approved = append(approved, scored{opp: opp, assessment: assessment, confidence: confidence})
	}

	if len(approved) == 0 {
		return
	}

	// Detector output is profit-sorted; the advisor hint reorders within
	// the approved set but never changes membership.
	sort.SliceStable(approved, func(i, j int) bool {
		return approved[i].confidence > approved[j].confidence
	})

	if e.executor == nil {
		for _, s := range approved {
			e.logger.InfoContext(ctx, "opportunity approved (observe only)",
				slog.String("fingerprint", s.opp.Fingerprint()),
				slog.Float64("profit_pct", s.opp.ProfitPct),
				slog.Float64("score", s.assessment.Score),
				slog.Float64("confidence", s.confidence),
			)
		}
		return
	}

	for _, s := range approved {
		select {
		case e.execSem <- struct{}{}:
		default:
			e.logger.WarnContext(ctx, "executor saturated, dropping candidate",
				slog.String("fingerprint", s.opp.Fingerprint()),
			)
			continue
		}

		e.wg.Add(1)
		go func(opp domain.Opportunity) {
			defer e.wg.Done()
			defer func() { <-e.execSem }()
			e.execute(ctx, opp)
		}(s.opp)
	}
	e.metrics.InFlight.Set(float64(e.executor.InFlightCount()))
}

type scored struct {
	opp        domain.Opportunity
	assessment domain.RiskAssessment
	confidence float64
}

// execute runs one opportunity through the coordinator and publishes the
// outcome.
func (e *Engine) execute(ctx context.Context, opp domain.Opportunity) {
	rec, err := e.executor.Execute(ctx, opp)

	switch {
	case err == nil:
		e.metrics.Executions.WithLabelValues(string(rec.Status)).Inc()
		e.publish(ctx, "trades", map[string]any{
			"event":        "execution_validated",
			"execution_id": rec.ID,
			"fingerprint":  rec.Fingerprint,
			"pair":         rec.Pair.String(),
			"size":         rec.Size,
			"profit":       rec.RealizedProfit,
		})
		e.notify(ctx, "execution_validated", "Trade executed",
			rec.Pair.String()+" validated")

	case rec.ID == "": // rejected before a record existed (stale, in flight)
		e.logger.DebugContext(ctx, "execution skipped",
			slog.String("fingerprint", opp.Fingerprint()),
			slog.String("error", err.Error()),
		)

	default:
		e.metrics.Executions.WithLabelValues(string(rec.Status)).Inc()
		severity := "error"
		event := "execution_failed"
		if rec.Status == domain.ExecStuck {
			severity = "critical"
			event = "execution_stuck"
		}
		e.logAudit(ctx, "executor", err.Error(), severity)
		e.publish(ctx, "trades", map[string]any{
			"event":        event,
			"execution_id": rec.ID,
			"fingerprint":  rec.Fingerprint,
			"error":        err.Error(),
		})
		e.notify(ctx, event, "Execution "+string(rec.Status), err.Error())
	}

	e.metrics.InFlight.Set(float64(e.executor.InFlightCount()))
	e.metrics.DailyPnL.Set(e.positions.Snapshot().DailyPnL)
}

// recordOpportunity persists and publishes a detection, best effort.
func (e *Engine) recordOpportunity(ctx context.Context, opp domain.Opportunity) {
	if e.oppStore != nil {
		if err := e.oppStore.Insert(ctx, opp); err != nil {
			e.logger.WarnContext(ctx, "opportunity insert failed", slog.String("error", err.Error()))
		}
	}
	e.publish(ctx, "opportunities", map[string]any{
		"event":       "opportunity_detected",
		"id":          opp.ID,
		"type":        string(opp.Type),
		"fingerprint": opp.Fingerprint(),
		"profit_pct":  opp.ProfitPct,
		"size":        opp.Size,
		"detected_at": opp.DetectedAt.Format(time.RFC3339Nano),
	})
}

// publish sends an event to the bus, best effort.
func (e *Engine) publish(ctx context.Context, channel string, payload map[string]any) {
	if e.bus == nil {
		return
	}
	data, _ := json.Marshal(payload)
	if err := e.bus.Publish(ctx, channel, data); err != nil {
		e.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// notify forwards an alert, best effort.
func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
	}
}

// logAudit records a component failure, best effort.
func (e *Engine) logAudit(ctx context.Context, component, message, severity string) {
	e.errCount.Add(1)
	if e.audit == nil {
		return
	}
	rec := domain.ErrorRecord{
		Timestamp: time.Now().UTC(),
		Component: component,
		Message:   message,
		Severity:  severity,
	}
	if err := e.audit.Log(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
}

// reasonLabel collapses a rejection reason into a bounded metric label.
func reasonLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "position limit"):
		return "position_limit"
	case reason == "daily loss limit reached":
		return "daily_loss"
	case reason == "insufficient profit potential":
		return "insufficient_profit"
	case strings.HasPrefix(reason, "risk score"):
		return "risk_score"
	default:
		return "other"
	}
}
