package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.LogLevel = "loud"
	cfg.Dispatch.ConfidenceThreshold = 1.5
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
	assert.Contains(t, err.Error(), `unknown log_level "loud"`)
	assert.Contains(t, err.Error(), "confidence_threshold")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateRequiresKeyPasswordForEncryptedKey(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.EncryptedKeyPath = "/etc/oppbot/key.json"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")
}

func TestValidateScanSection(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.Venues = []string{"solo"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least two venues")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPPBOT_MODE", "monitor")
	t.Setenv("OPPBOT_DISPATCH_WORKERS", "8")
	t.Setenv("OPPBOT_DISPATCH_CYCLE_INTERVAL", "250ms")
	t.Setenv("OPPBOT_SCAN_ASSETS", "SOL, ETH")
	t.Setenv("OPPBOT_SERVER_API_KEY", "sekrit")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.CycleInterval.Duration)
	assert.Equal(t, []string{"SOL", "ETH"}, cfg.Scan.Assets)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
}

func TestEnvOverridesIgnoreUnsetAndMalformed(t *testing.T) {
	t.Setenv("OPPBOT_DISPATCH_WORKERS", "many")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, Defaults().Dispatch.Workers, cfg.Dispatch.Workers)
	assert.Equal(t, Defaults().Mode, cfg.Mode)
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Postgres.Password = "hunter2"
	cfg.Redis.Password = "hunter2"
	cfg.S3.SecretKey = "hunter2"
	cfg.Server.APIKey = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original must be untouched.
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	// Slices are copies.
	red.Scan.Assets[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Scan.Assets[0])
}
