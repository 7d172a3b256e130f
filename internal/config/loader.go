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
// built-in defaults, applies OPPBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known OPPBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "OPPBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "OPPBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "OPPBOT_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.WithdrawAddress, "OPPBOT_WALLET_WITHDRAW_ADDRESS")

	// ── Dispatch ──
	setInt(&cfg.Dispatch.Workers, "OPPBOT_DISPATCH_WORKERS")
	setFloat64(&cfg.Dispatch.ConfidenceThreshold, "OPPBOT_DISPATCH_CONFIDENCE_THRESHOLD")
	setDuration(&cfg.Dispatch.CycleInterval, "OPPBOT_DISPATCH_CYCLE_INTERVAL")
	setDuration(&cfg.Dispatch.GeneratorInterval, "OPPBOT_DISPATCH_GENERATOR_INTERVAL")
	setDuration(&cfg.Dispatch.ScanInterval, "OPPBOT_DISPATCH_SCAN_INTERVAL")
	setDuration(&cfg.Dispatch.TrainInterval, "OPPBOT_DISPATCH_TRAIN_INTERVAL")
	setInt(&cfg.Dispatch.TrainMinSamples, "OPPBOT_DISPATCH_TRAIN_MIN_SAMPLES")

	// ── Decision ──
	setFloat64(&cfg.Decision.CostUnitPrice, "OPPBOT_DECISION_COST_UNIT_PRICE")

	// ── FlashLoan ──
	setBool(&cfg.FlashLoan.Enabled, "OPPBOT_FLASHLOAN_ENABLED")
	setFloat64(&cfg.FlashLoan.LoanAmount, "OPPBOT_FLASHLOAN_LOAN_AMOUNT")
	setStr(&cfg.FlashLoan.LoanAsset, "OPPBOT_FLASHLOAN_LOAN_ASSET")
	setFloat64(&cfg.FlashLoan.FeeRate, "OPPBOT_FLASHLOAN_FEE_RATE")
	setFloat64(&cfg.FlashLoan.GasCost, "OPPBOT_FLASHLOAN_GAS_COST")
	setFloat64(&cfg.FlashLoan.SlippageRate, "OPPBOT_FLASHLOAN_SLIPPAGE_RATE")
	setFloat64(&cfg.FlashLoan.MinSpreadPct, "OPPBOT_FLASHLOAN_MIN_SPREAD_PCT")
	setFloat64(&cfg.FlashLoan.MinProfit, "OPPBOT_FLASHLOAN_MIN_PROFIT")
	setFloat64(&cfg.FlashLoan.MinConfidence, "OPPBOT_FLASHLOAN_MIN_CONFIDENCE")
	setFloat64(&cfg.FlashLoan.MaxRisk, "OPPBOT_FLASHLOAN_MAX_RISK")
	setDuration(&cfg.FlashLoan.TTL, "OPPBOT_FLASHLOAN_TTL")

	// ── Scan ──
	setStringSlice(&cfg.Scan.Assets, "OPPBOT_SCAN_ASSETS")
	setStringSlice(&cfg.Scan.Venues, "OPPBOT_SCAN_VENUES")
	setDuration(&cfg.Scan.MaxQuoteAge, "OPPBOT_SCAN_MAX_QUOTE_AGE")
	setFloat64(&cfg.Scan.MinSpreadPct, "OPPBOT_SCAN_MIN_SPREAD_PCT")
	setFloat64(&cfg.Scan.Notional, "OPPBOT_SCAN_NOTIONAL")
	setDuration(&cfg.Scan.TTL, "OPPBOT_SCAN_TTL")

	// ── Executor ──
	setFloat64(&cfg.Executor.SlippageRate, "OPPBOT_EXECUTOR_SLIPPAGE_RATE")
	setDuration(&cfg.Executor.Latency, "OPPBOT_EXECUTOR_LATENCY")
	setDuration(&cfg.Executor.DedupTTL, "OPPBOT_EXECUTOR_DEDUP_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "OPPBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "OPPBOT_POSTGRES_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "OPPBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPPBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPPBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPPBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPPBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPPBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPPBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPPBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPPBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "OPPBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPPBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPPBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPPBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPPBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPPBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "OPPBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPPBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPPBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPPBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPPBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "OPPBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "OPPBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "OPPBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "OPPBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "OPPBOT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "OPPBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "OPPBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "OPPBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "OPPBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OPPBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OPPBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OPPBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OPPBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "OPPBOT_MODE")
	setStr(&cfg.LogLevel, "OPPBOT_LOG_LEVEL")
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
