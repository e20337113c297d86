package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies XRPARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known XRPARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "XRPARB_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.WSURL, "XRPARB_LEDGER_WS_URL")
	setStr(&cfg.Ledger.Account, "XRPARB_LEDGER_ACCOUNT")
	setStr(&cfg.Ledger.Seed, "XRPARB_LEDGER_SEED")
	setStr(&cfg.Ledger.EncryptedSeedPath, "XRPARB_LEDGER_ENCRYPTED_SEED_PATH")
	setStr(&cfg.Ledger.SeedPassword, "XRPARB_LEDGER_SEED_PASSWORD")
	setDuration(&cfg.Ledger.RequestTimeout, "XRPARB_LEDGER_REQUEST_TIMEOUT")
	setFloat64(&cfg.Ledger.RateLimitRPS, "XRPARB_LEDGER_RATE_LIMIT_RPS")
	setInt(&cfg.Ledger.RateLimitBurst, "XRPARB_LEDGER_RATE_LIMIT_BURST")

	// ── Detector ──
	setDuration(&cfg.Detector.PollInterval, "XRPARB_DETECTOR_POLL_INTERVAL")
	setDuration(&cfg.Detector.QuoteTimeout, "XRPARB_DETECTOR_QUOTE_TIMEOUT")
	setFloat64(&cfg.Detector.MinDirectProfitPct, "XRPARB_DETECTOR_MIN_DIRECT_PROFIT_PCT")
	setFloat64(&cfg.Detector.MinTriangularProfitPct, "XRPARB_DETECTOR_MIN_TRIANGULAR_PROFIT_PCT")
	setFloat64(&cfg.Detector.SlippageCoefficient, "XRPARB_DETECTOR_SLIPPAGE_COEFFICIENT")
	setFloat64(&cfg.Detector.MaxSlippage, "XRPARB_DETECTOR_MAX_SLIPPAGE")
	setFloat64(&cfg.Detector.StartSize, "XRPARB_DETECTOR_START_SIZE")
	setDuration(&cfg.Detector.StalenessWindow, "XRPARB_DETECTOR_STALENESS_WINDOW")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxPositionSize, "XRPARB_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.MaxDailyLoss, "XRPARB_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MinProfitThreshold, "XRPARB_RISK_MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Risk.ApprovalThreshold, "XRPARB_RISK_APPROVAL_THRESHOLD")

	// ── Executor ──
	setFloat64(&cfg.Executor.SendMaxBufferPct, "XRPARB_EXECUTOR_SEND_MAX_BUFFER_PCT")
	setDuration(&cfg.Executor.RetryBaseDelay, "XRPARB_EXECUTOR_RETRY_BASE_DELAY")
	setDuration(&cfg.Executor.RetryMaxDelay, "XRPARB_EXECUTOR_RETRY_MAX_DELAY")
	setFloat64(&cfg.Executor.RetryExponent, "XRPARB_EXECUTOR_RETRY_EXPONENT")
	setInt(&cfg.Executor.MaxAttempts, "XRPARB_EXECUTOR_MAX_ATTEMPTS")
	setDuration(&cfg.Executor.ConfirmTimeout, "XRPARB_EXECUTOR_CONFIRM_TIMEOUT")
	setInt(&cfg.Executor.MaxConcurrent, "XRPARB_EXECUTOR_MAX_CONCURRENT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "XRPARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "XRPARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "XRPARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "XRPARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "XRPARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "XRPARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "XRPARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "XRPARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "XRPARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "XRPARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "XRPARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "XRPARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "XRPARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "XRPARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "XRPARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "XRPARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "XRPARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "XRPARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "XRPARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "XRPARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "XRPARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "XRPARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "XRPARB_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "XRPARB_S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "XRPARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "XRPARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "XRPARB_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "XRPARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "XRPARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "XRPARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "XRPARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "XRPARB_MODE")
	setStr(&cfg.LogLevel, "XRPARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
