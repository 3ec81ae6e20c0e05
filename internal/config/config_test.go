package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/sources"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Anthropic.Key)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 7, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(4<<20), cfg.Fetch.MaxBodyBytes)
	assert.True(t, cfg.Fetch.DetectBlocks)
	assert.Equal(t, sources.DefaultCraigslistCities, cfg.Sources.CraigslistCities)
	assert.Equal(t, 10, cfg.Session.MaxHistoryTurns)
	assert.Equal(t, 50, cfg.Session.MaxTotalMessages)
	assert.Equal(t, 24*60, cfg.Session.IdleTTLMins)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
cache:
  driver: sqlite
  database_url: haggle.db
log:
  level: debug
  format: console
server:
  port: 9090
sources:
  craigslist_cities: [austin, boston]
session:
  max_history_turns: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "haggle.db", cfg.Cache.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"austin", "boston"}, cfg.Sources.CraigslistCities)
	assert.Equal(t, 4, cfg.Session.MaxHistoryTurns)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Session.MaxTotalMessages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0644))
	t.Setenv("HAGGLE_LOG_LEVEL", "warn")
	t.Setenv("HAGGLE_FETCH_TIMEOUT_SECS", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Fetch.TimeoutSecs)
}

func TestLoadAnthropicKeyFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HAGGLE_ANTHROPIC_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestDurations(t *testing.T) {
	cfg := Config{
		Fetch:   FetchConfig{TimeoutSecs: 7},
		Session: SessionConfig{IdleTTLMins: 90, SweepIntervalMins: 10},
		Cache:   CacheConfig{TTLMins: 30},
	}
	assert.Equal(t, "7s", cfg.Fetch.Timeout().String())
	assert.Equal(t, "1h30m0s", cfg.Session.IdleTTL().String())
	assert.Equal(t, "10m0s", cfg.Session.SweepInterval().String())
	assert.Equal(t, "30m0s", cfg.Cache.TTL().String())
}

func validDefaults() *Config {
	return &Config{
		Fetch:   FetchConfig{TimeoutSecs: 7},
		Session: SessionConfig{MaxHistoryTurns: 10, MaxTotalMessages: 50, IdleTTLMins: 60},
		Cache:   CacheConfig{Driver: "none"},
		Server:  ServerConfig{Port: 8000},
	}
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidatePrice_IgnoresServer(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("price"))
}

func TestValidateCacheDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Driver = "postgres"

	err := cfg.Validate("price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.database_url is required")

	cfg.Cache.Driver = "redis"
	err = cfg.Validate("price")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not one of none, sqlite, postgres")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Fetch.TimeoutSecs = 0
	cfg.Session.MaxTotalMessages = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "session.max_total_messages must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
