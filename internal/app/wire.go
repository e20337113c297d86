package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/quantfall/xrparb/internal/blob/s3"
	"github.com/quantfall/xrparb/internal/cache/redis"
	"github.com/quantfall/xrparb/internal/config"
	"github.com/quantfall/xrparb/internal/crypto"
	"github.com/quantfall/xrparb/internal/domain"
	"github.com/quantfall/xrparb/internal/ledger"
	"github.com/quantfall/xrparb/internal/notify"
	"github.com/quantfall/xrparb/internal/store/postgres"
)

// Dependencies bundles every externally-backed dependency the operating
// modes need. It is constructed by Wire and torn down by the returned
// cleanup function. Store fields are nil in modes without persistence.
type Dependencies struct {
	// Ledger access.
	Gateway domain.LedgerGateway
	Stream  *ledger.TxStream // nil outside trading modes
	Venues  []domain.Venue

	// Stores (nil without Postgres).
	ExecStore  domain.ExecutionStore
	TradeStore domain.TradeStore
	OppStore   domain.OpportunityStore
	AuditStore domain.AuditStore

	// Cache and messaging.
	QuoteCache domain.QuoteCache
	Bus        domain.SignalBus

	// Blob storage (nil without S3).
	Archiver *s3blob.Archiver

	// Notifications.
	Notifier *notify.Notifier

	// Raw clients kept for health checks.
	Redis *redis.Client
	PG    *postgres.Client
	S3    *s3blob.Client
}

// needsPostgres reports whether the mode persists records.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "monitor", "full":
		return true
	default:
		return false
	}
}

// needsS3 reports whether the mode archives to object storage. Archival
// reads from Postgres, so this is a subset of needsPostgres.
func needsS3(mode string) bool {
	switch mode {
	case "monitor", "full":
		return true
	default:
		return false
	}
}

// needsWallet reports whether the mode submits payments.
func needsWallet(mode string) bool {
	return mode == "trade" || mode == "full"
}

// Wire constructs all concrete dependency implementations for the configured
// mode. The returned cleanup releases resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	for _, v := range cfg.Venues {
		deps.Venues = append(deps.Venues, domain.Venue{
			Name:       v.Name,
			Address:    v.Address,
			Currencies: v.Currencies,
		})
	}

	// --- Ledger client (wallet seed only in trading modes) ---
	var seed string
	if needsWallet(cfg.Mode) {
		var err error
		seed, err = crypto.LoadSeed(crypto.SeedConfig{
			RawSeed:           cfg.Ledger.Seed,
			EncryptedSeedPath: cfg.Ledger.EncryptedSeedPath,
			SeedPassword:      cfg.Ledger.SeedPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: wallet seed: %w", err)
		}
	}

	client := ledger.NewClient(ledger.Options{
		RPCURL:         cfg.Ledger.RPCURL,
		Account:        cfg.Ledger.Account,
		Secret:         seed,
		RequestTimeout: cfg.Ledger.RequestTimeout.Duration,
		RateLimitRPS:   cfg.Ledger.RateLimitRPS,
		RateLimitBurst: cfg.Ledger.RateLimitBurst,
	})
	deps.Gateway = client

	// Validated-transaction stream: a fast path for confirmation in trading
	// modes. Losing it degrades to polling, so a dial failure only warns.
	if needsWallet(cfg.Mode) && cfg.Ledger.WSURL != "" {
		stream := ledger.NewTxStream(cfg.Ledger.WSURL, []string{cfg.Ledger.Account})
		if err := stream.Connect(ctx); err != nil {
			logger.WarnContext(ctx, "transaction stream unavailable, falling back to polling",
				slog.String("ws_url", cfg.Ledger.WSURL),
				slog.String("error", err.Error()),
			)
		} else {
			client.SetStream(stream)
			deps.Stream = stream
			closers = append(closers, func() { _ = stream.Close() })
		}
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- PostgreSQL (only for modes that persist) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PG = pgClient
		deps.ExecStore = postgres.NewExecutionStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.OppStore = postgres.NewOpportunityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- S3 archiver (only for modes that archive) ---
	if needsS3(cfg.Mode) && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.S3 = s3Client
		retention := time.Duration(cfg.S3.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.ExecStore,
			deps.TradeStore,
			retention,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
