// Package config defines the top-level configuration for the opportunity bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OPPBOT_* environment variables.
type Config struct {
	Wallet    WalletConfig    `toml:"wallet"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
	Decision  DecisionConfig  `toml:"decision"`
	FlashLoan FlashLoanConfig `toml:"flashloan"`
	Scan      ScanConfig      `toml:"scan"`
	Executor  ExecutorConfig  `toml:"executor"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// WalletConfig holds the credentials used by the withdrawal utility.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	WithdrawAddress  string `toml:"withdraw_address"`
}

// DispatchConfig holds dispatcher loop parameters. Zero values fall back to
// the dispatch package defaults.
type DispatchConfig struct {
	Workers             int      `toml:"workers"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	CycleInterval       duration `toml:"cycle_interval"`
	GeneratorInterval   duration `toml:"generator_interval"`
	ScanInterval        duration `toml:"scan_interval"`
	TrainInterval       duration `toml:"train_interval"`
	TrainMinSamples     int      `toml:"train_min_samples"`
}

// DecisionConfig holds decision-engine parameters.
type DecisionConfig struct {
	CostUnitPrice float64 `toml:"cost_unit_price"`
}

// FlashLoanConfig holds flash-loan construction parameters.
type FlashLoanConfig struct {
	Enabled       bool     `toml:"enabled"`
	LoanAmount    float64  `toml:"loan_amount"`
	LoanAsset     string   `toml:"loan_asset"`
	FeeRate       float64  `toml:"fee_rate"`
	GasCost       float64  `toml:"gas_cost"`
	SlippageRate  float64  `toml:"slippage_rate"`
	MinSpreadPct  float64  `toml:"min_spread_pct"`
	MinProfit     float64  `toml:"min_profit"`
	MinConfidence float64  `toml:"min_confidence"`
	MaxRisk       float64  `toml:"max_risk"`
	TTL           duration `toml:"ttl"`
}

// ScanConfig holds the market-scan parameters shared by the price oracle and
// the opportunity scanner.
type ScanConfig struct {
	Assets       []string `toml:"assets"`
	Venues       []string `toml:"venues"`
	MaxQuoteAge  duration `toml:"max_quote_age"`
	MinSpreadPct float64  `toml:"min_spread_pct"`
	Notional     float64  `toml:"notional"`
	TTL          duration `toml:"ttl"`
}

// ExecutorConfig holds the paper execution client's fill-model parameters.
type ExecutorConfig struct {
	SlippageRate float64  `toml:"slippage_rate"`
	Latency      duration `toml:"latency"`
	DedupTTL     duration `toml:"dedup_ttl"`
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

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds outcome cold-storage parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"` // empty disables authentication
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Dispatch: DispatchConfig{
			Workers:             0, // 0 = derived from GOMAXPROCS
			ConfidenceThreshold: 0.7,
			CycleInterval:       duration{50 * time.Millisecond},
			GeneratorInterval:   duration{time.Second},
			ScanInterval:        duration{5 * time.Second},
			TrainInterval:       duration{30 * time.Second},
			TrainMinSamples:     100,
		},
		Decision: DecisionConfig{
			CostUnitPrice: 150,
		},
		FlashLoan: FlashLoanConfig{
			Enabled:       true,
			LoanAmount:    100,
			LoanAsset:     "USDC",
			FeeRate:       0.0009,
			GasCost:       0.5,
			SlippageRate:  0.005,
			MinSpreadPct:  0.3,
			MinProfit:     0.1,
			MinConfidence: 0.6,
			MaxRisk:       0.8,
			TTL:           duration{10 * time.Second},
		},
		Scan: ScanConfig{
			Assets:       []string{"SOL", "ETH", "BTC"},
			Venues:       []string{"raydium", "orca"},
			MaxQuoteAge:  duration{30 * time.Second},
			MinSpreadPct: 0.2,
			Notional:     100,
			TTL:          duration{10 * time.Second},
		},
		Executor: ExecutorConfig{
			SlippageRate: 0.01,
			Latency:      duration{20 * time.Millisecond},
			DedupTTL:     duration{2 * time.Minute},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "oppbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "oppbot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "flashloan_success", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, monitor, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — the encrypted keystore needs its password.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Dispatch
	if c.Dispatch.Workers < 0 {
		errs = append(errs, "dispatch: workers must be >= 0 (0 derives from cores)")
	}
	if c.Dispatch.ConfidenceThreshold < 0 || c.Dispatch.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Sprintf("dispatch: confidence_threshold must be in [0,1], got %g", c.Dispatch.ConfidenceThreshold))
	}
	if c.Dispatch.TrainMinSamples < 1 {
		errs = append(errs, "dispatch: train_min_samples must be >= 1")
	}

	// Decision
	if c.Decision.CostUnitPrice <= 0 {
		errs = append(errs, "decision: cost_unit_price must be > 0")
	}

	// FlashLoan
	if c.FlashLoan.Enabled {
		if c.FlashLoan.LoanAmount <= 0 {
			errs = append(errs, "flashloan: loan_amount must be > 0 when enabled")
		}
		if c.FlashLoan.FeeRate < 0 {
			errs = append(errs, "flashloan: fee_rate must be >= 0")
		}
		if c.FlashLoan.MinSpreadPct <= 0 {
			errs = append(errs, "flashloan: min_spread_pct must be > 0 when enabled")
		}
		if c.FlashLoan.MaxRisk <= 0 || c.FlashLoan.MaxRisk > 1 {
			errs = append(errs, fmt.Sprintf("flashloan: max_risk must be in (0,1], got %g", c.FlashLoan.MaxRisk))
		}
	}

	// Scan
	if len(c.Scan.Assets) == 0 {
		errs = append(errs, "scan: assets must not be empty")
	}
	if len(c.Scan.Venues) < 2 {
		errs = append(errs, "scan: at least two venues are required to detect discrepancies")
	}
	if c.Scan.Notional <= 0 {
		errs = append(errs, "scan: notional must be > 0")
	}
	if c.Scan.MinSpreadPct <= 0 {
		errs = append(errs, "scan: min_spread_pct must be > 0")
	}

	// Executor
	if c.Executor.SlippageRate < 0 || c.Executor.SlippageRate >= 1 {
		errs = append(errs, fmt.Sprintf("executor: slippage_rate must be in [0,1), got %g", c.Executor.SlippageRate))
	}

	// Postgres
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
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
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
