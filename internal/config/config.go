// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by XRPARB_* environment variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Venues   []VenueConfig  `toml:"venues"`
	Tracked  TrackedConfig  `toml:"tracked"`
	Detector DetectorConfig `toml:"detector"`
	Risk     RiskConfig     `toml:"risk"`
	Executor ExecutorConfig `toml:"executor"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds ledger connectivity and wallet credentials.
type LedgerConfig struct {
	RPCURL            string   `toml:"rpc_url"`
	WSURL             string   `toml:"ws_url"`
	Account           string   `toml:"account"`
	Seed              string   `toml:"seed"`
	EncryptedSeedPath string   `toml:"encrypted_seed_path"`
	SeedPassword      string   `toml:"seed_password"`
	RequestTimeout    duration `toml:"request_timeout"`
	RateLimitRPS      float64  `toml:"rate_limit_rps"`
	RateLimitBurst    int      `toml:"rate_limit_burst"`
}

// VenueConfig describes one issuing account loaded as reference data.
type VenueConfig struct {
	Name       string   `toml:"name"`
	Address    string   `toml:"address"`
	Currencies []string `toml:"currencies"`
}

// TrackedConfig lists what the aggregator polls: currencies crossed against
// the native asset on every venue, and the closed cycles the triangular
// detector evaluates. Each cycle is a list of currency codes returning to the
// first, e.g. ["XRP", "USD", "EUR"] for XRP/USD -> USD/EUR -> EUR/XRP.
type TrackedConfig struct {
	Currencies []string   `toml:"currencies"`
	Cycles     [][]string `toml:"cycles"`
}

// DetectorConfig holds polling and detection thresholds.
type DetectorConfig struct {
	PollInterval          duration `toml:"poll_interval"`
	QuoteTimeout          duration `toml:"quote_timeout"`
	MinDirectProfitPct    float64  `toml:"min_direct_profit_pct"`
	MinTriangularProfitPct float64 `toml:"min_triangular_profit_pct"`
	SlippageCoefficient   float64  `toml:"slippage_coefficient"`
	MaxSlippage           float64  `toml:"max_slippage"`
	StartSize             float64  `toml:"start_size"`
	StalenessWindow       duration `toml:"staleness_window"`
}

// RiskConfig holds the static risk limits.
type RiskConfig struct {
	MaxPositionSize    float64 `toml:"max_position_size"`
	MaxDailyLoss       float64 `toml:"max_daily_loss"`
	MinProfitThreshold float64 `toml:"min_profit_threshold"`
	ApprovalThreshold  float64 `toml:"approval_threshold"`
}

// ExecutorConfig holds submission and retry parameters.
type ExecutorConfig struct {
	SendMaxBufferPct float64  `toml:"send_max_buffer_pct"`
	RetryBaseDelay   duration `toml:"retry_base_delay"`
	RetryMaxDelay    duration `toml:"retry_max_delay"`
	RetryExponent    float64  `toml:"retry_exponent"`
	MaxAttempts      int      `toml:"max_attempts"`
	ConfirmTimeout   duration `toml:"confirm_timeout"`
	MaxConcurrent    int      `toml:"max_concurrent"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// ServerConfig holds the observability HTTP server parameters.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			RPCURL:         "https://s.altnet.rippletest.net:51234",
			WSURL:          "wss://s.altnet.rippletest.net:51233",
			RequestTimeout: duration{10 * time.Second},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Venues: []VenueConfig{
			{
				Name:       "bitstamp",
				Address:    "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B",
				Currencies: []string{"USD", "BTC", "ETH"},
			},
			{
				Name:       "gatehub",
				Address:    "rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq",
				Currencies: []string{"USD", "EUR", "BTC", "ETH"},
			},
		},
		Tracked: TrackedConfig{
			Currencies: []string{"USD", "EUR", "BTC", "ETH"},
			Cycles: [][]string{
				{"XRP", "USD", "EUR"},
				{"XRP", "USD", "BTC"},
				{"XRP", "BTC", "ETH"},
			},
		},
		Detector: DetectorConfig{
			PollInterval:           duration{time.Second},
			QuoteTimeout:           duration{5 * time.Second},
			MinDirectProfitPct:     0.08,
			MinTriangularProfitPct: 0.15,
			SlippageCoefficient:    0.1,
			MaxSlippage:            0.05,
			StartSize:              1000,
			StalenessWindow:        duration{60 * time.Second},
		},
		Risk: RiskConfig{
			MaxPositionSize:    10_000,
			MaxDailyLoss:       1_000,
			MinProfitThreshold: 0.01,
			ApprovalThreshold:  0.7,
		},
		Executor: ExecutorConfig{
			SendMaxBufferPct: 1.0,
			RetryBaseDelay:   duration{time.Second},
			RetryMaxDelay:    duration{5 * time.Second},
			RetryExponent:    2,
			MaxAttempts:      3,
			ConfirmTimeout:   duration{20 * time.Second},
			MaxConcurrent:    4,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "xrparb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "xrparb-data",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"execution_validated", "execution_failed", "execution_stuck", "error"},
		},
		Mode:     "detect",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"detect":  true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, detect, monitor, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger.
	if c.Ledger.RPCURL == "" {
		errs = append(errs, "ledger: rpc_url must not be empty")
	}
	if c.Ledger.RateLimitRPS <= 0 {
		errs = append(errs, "ledger: rate_limit_rps must be > 0")
	}
	needsWallet := c.Mode == "trade" || c.Mode == "full"
	if needsWallet {
		if c.Ledger.Account == "" {
			errs = append(errs, "ledger: account is required for mode "+c.Mode)
		}
		if c.Ledger.Seed == "" && c.Ledger.EncryptedSeedPath == "" {
			errs = append(errs, "ledger: either seed or encrypted_seed_path must be set for mode "+c.Mode)
		}
		if c.Ledger.EncryptedSeedPath != "" && c.Ledger.SeedPassword == "" {
			errs = append(errs, "ledger: seed_password is required when encrypted_seed_path is set")
		}
	}

	// Venues and tracked currencies.
	if len(c.Venues) == 0 {
		errs = append(errs, "venues: at least one venue must be configured")
	}
	seen := map[string]bool{}
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if v.Address == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: address must not be empty", i))
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate name %q", i, v.Name))
		}
		seen[v.Name] = true
	}
	if len(c.Tracked.Currencies) == 0 {
		errs = append(errs, "tracked: currencies must not be empty")
	}
	for i, cycle := range c.Tracked.Cycles {
		if len(cycle) < 3 || len(cycle) > 4 {
			errs = append(errs, fmt.Sprintf("tracked: cycles[%d] must have 3 or 4 legs, got %d", i, len(cycle)))
		}
	}

	// Detector.
	if c.Detector.PollInterval.Duration <= 0 {
		errs = append(errs, "detector: poll_interval must be > 0")
	}
	if c.Detector.MinDirectProfitPct <= 0 {
		errs = append(errs, "detector: min_direct_profit_pct must be > 0")
	}
	if c.Detector.MinTriangularProfitPct <= 0 {
		errs = append(errs, "detector: min_triangular_profit_pct must be > 0")
	}
	if c.Detector.SlippageCoefficient < 0 {
		errs = append(errs, "detector: slippage_coefficient must be >= 0")
	}
	if c.Detector.MaxSlippage <= 0 || c.Detector.MaxSlippage >= 1 {
		errs = append(errs, "detector: max_slippage must be in (0, 1)")
	}
	if c.Detector.StartSize <= 0 {
		errs = append(errs, "detector: start_size must be > 0")
	}
	if c.Detector.StalenessWindow.Duration <= 0 {
		errs = append(errs, "detector: staleness_window must be > 0")
	}

	// Risk.
	if c.Risk.MaxPositionSize <= 0 {
		errs = append(errs, "risk: max_position_size must be > 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}
	if c.Risk.ApprovalThreshold <= 0 || c.Risk.ApprovalThreshold > 1 {
		errs = append(errs, "risk: approval_threshold must be in (0, 1]")
	}

	// Executor.
	if c.Executor.MaxAttempts < 1 {
		errs = append(errs, "executor: max_attempts must be >= 1")
	}
	if c.Executor.RetryBaseDelay.Duration <= 0 {
		errs = append(errs, "executor: retry_base_delay must be > 0")
	}
	if c.Executor.RetryMaxDelay.Duration < c.Executor.RetryBaseDelay.Duration {
		errs = append(errs, "executor: retry_max_delay must be >= retry_base_delay")
	}
	if c.Executor.RetryExponent <= 1 {
		errs = append(errs, "executor: retry_exponent must be > 1")
	}
	if c.Executor.SendMaxBufferPct < 0 {
		errs = append(errs, "executor: send_max_buffer_pct must be >= 0")
	}

	// Postgres — required for modes that persist.
	if needsPostgres(c.Mode) {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis.
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server.
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// needsPostgres reports whether the mode persists records.
func needsPostgres(mode string) bool {
	switch strings.ToLower(mode) {
	case "trade", "monitor", "full":
		return true
	default:
		return false
	}
}
