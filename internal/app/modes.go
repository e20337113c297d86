package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/quantfall/xrparb/internal/advisor"
	"github.com/quantfall/xrparb/internal/aggregator"
	"github.com/quantfall/xrparb/internal/detector"
	"github.com/quantfall/xrparb/internal/domain"
	"github.com/quantfall/xrparb/internal/engine"
	"github.com/quantfall/xrparb/internal/executor"
	"github.com/quantfall/xrparb/internal/metrics"
	"github.com/quantfall/xrparb/internal/position"
	"github.com/quantfall/xrparb/internal/risk"
	"github.com/quantfall/xrparb/internal/server"
	"github.com/quantfall/xrparb/internal/server/handler"
)

// runtime is the assembled trading stack for one process lifetime.
type runtime struct {
	engine      *engine.Engine
	coordinator *executor.Coordinator // nil when the process only observes
	positions   *position.Ledger
	registry    *prometheus.Registry
}

// DetectMode polls rates and logs opportunities without persistence or
// execution. Useful for validating thresholds against live books.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")
	return a.run(ctx, deps, false, false)
}

// MonitorMode detects and persists opportunities and archives aged records,
// but never executes.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.run(ctx, deps, false, true)
}

// TradeMode runs the full detect-assess-execute loop.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.run(ctx, deps, true, false)
}

// FullMode is TradeMode plus archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, true, true)
}

// run assembles the runtime and blocks until the context is cancelled or a
// component fails.
func (a *App) run(ctx context.Context, deps *Dependencies, trading, archive bool) error {
	rt := a.buildRuntime(deps, trading)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.engine.Run(ctx)
	})

	if archive && deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, rt)
	}

	return g.Wait()
}

// buildRuntime constructs the aggregator, detector, risk assessor, position
// ledger, optional executor, and the engine binding them together.
func (a *App) buildRuntime(deps *Dependencies, trading bool) *runtime {
	cfg := a.cfg

	det := detector.New(detector.Config{
		MinDirectProfitPct:     cfg.Detector.MinDirectProfitPct,
		MinTriangularProfitPct: cfg.Detector.MinTriangularProfitPct,
		SlippageCoefficient:    cfg.Detector.SlippageCoefficient,
		MaxSlippage:            cfg.Detector.MaxSlippage,
		StartSize:              cfg.Detector.StartSize,
	}, cfg.Tracked.Cycles, deps.Venues, a.logger)

	// The pair catalog is the native cross-product plus whatever extra legs
	// the configured cycles reach (e.g. USD/EUR), deduplicated.
	pairs := mergePairs(
		domain.GeneratePairs(cfg.Tracked.Currencies, deps.Venues),
		det.CyclePairs(),
	)

	agg := aggregator.New(
		deps.Gateway,
		deps.Venues,
		pairs,
		cfg.Detector.QuoteTimeout.Duration,
		deps.QuoteCache,
		a.logger,
	)

	positions := position.NewLedger()
	assessor := risk.New(domain.RiskLimits{
		MaxPositionSize:    cfg.Risk.MaxPositionSize,
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		MinProfitThreshold: cfg.Risk.MinProfitThreshold,
		ApprovalThreshold:  cfg.Risk.ApprovalThreshold,
	})

	var coord *executor.Coordinator
	var exec engine.Executor
	if trading {
		coord = executor.New(
			deps.Gateway,
			deps.Venues,
			executor.Config{
				Account:          cfg.Ledger.Account,
				SendMaxBufferPct: cfg.Executor.SendMaxBufferPct,
				Backoff: executor.Backoff{
					Base:     cfg.Executor.RetryBaseDelay.Duration,
					Max:      cfg.Executor.RetryMaxDelay.Duration,
					Exponent: cfg.Executor.RetryExponent,
				},
				MaxAttempts:     cfg.Executor.MaxAttempts,
				ConfirmTimeout:  cfg.Executor.ConfirmTimeout.Duration,
				StalenessWindow: cfg.Detector.StalenessWindow.Duration,
			},
			positions,
			deps.ExecStore,
			deps.TradeStore,
			a.logger,
		)
		exec = coord
	}

	registry := prometheus.NewRegistry()

	eng := engine.New(
		agg,
		det,
		assessor,
		positions,
		exec,
		advisor.NewEWMA(),
		deps.OppStore,
		deps.AuditStore,
		deps.Bus,
		deps.Notifier,
		metrics.New(registry),
		engine.Config{
			PollInterval:  cfg.Detector.PollInterval.Duration,
			MaxConcurrent: cfg.Executor.MaxConcurrent,
		},
		a.logger,
	)

	return &runtime{
		engine:      eng,
		coordinator: coord,
		positions:   positions,
		registry:    registry,
	}
}

// startServer builds the observability HTTP server and manages its lifecycle
// within the errgroup.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, rt *runtime) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(rt.engine, a.healthPingers(deps)...),
		Positions: handler.NewPositionHandler(rt.positions),
	}
	if deps.ExecStore != nil {
		var stats handler.StatsSource
		if rt.coordinator != nil {
			stats = rt.coordinator
		}
		handlers.Executions = handler.NewExecutionHandler(deps.ExecStore, stats, a.logger)
	}
	if deps.TradeStore != nil {
		handlers.Trades = handler.NewTradeHandler(deps.TradeStore, a.logger)
	}
	if deps.OppStore != nil {
		handlers.Opportunities = handler.NewOpportunityHandler(deps.OppStore, a.logger)
	}

	srv := server.NewServer(server.Config{Port: a.cfg.Server.Port, APIKey: a.cfg.Server.APIKey}, handlers, rt.registry, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// healthPingers lists the external dependencies the health endpoint probes.
func (a *App) healthPingers(deps *Dependencies) []handler.Pinger {
	pingers := []handler.Pinger{
		pinger{name: "redis", ping: deps.Redis.Ping},
	}
	if deps.PG != nil {
		pingers = append(pingers, pinger{name: "postgres", ping: deps.PG.Pool().Ping})
	}
	if deps.S3 != nil {
		pingers = append(pingers, pinger{name: "s3", ping: deps.S3.Health})
	}
	return pingers
}

// pinger adapts a bare ping func to the handler.Pinger interface.
type pinger struct {
	name string
	ping func(context.Context) error
}

func (p pinger) Name() string                   { return p.name }
func (p pinger) Ping(ctx context.Context) error { return p.ping(ctx) }

// mergePairs unions pair catalogs, dropping duplicates.
func mergePairs(lists ...[]domain.TradingPair) []domain.TradingPair {
	seen := make(map[domain.TradingPair]bool)
	var out []domain.TradingPair
	for _, list := range lists {
		for _, p := range list {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
