package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/haggle/internal/sources"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig configures the language model. An empty key disables
// model calls.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	CacheTTL  string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// FetchConfig configures outbound document fetches.
type FetchConfig struct {
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerHost   float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	DetectBlocks  bool    `yaml:"detect_blocks" mapstructure:"detect_blocks"`
}

// Timeout returns the per-source fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SourcesConfig configures the source registry.
type SourcesConfig struct {
	CraigslistCities []string `yaml:"craigslist_cities" mapstructure:"craigslist_cities"`
}

// SessionConfig configures conversation windows and session lifetime.
type SessionConfig struct {
	MaxHistoryTurns   int `yaml:"max_history_turns" mapstructure:"max_history_turns"`
	MaxTotalMessages  int `yaml:"max_total_messages" mapstructure:"max_total_messages"`
	IdleTTLMins       int `yaml:"idle_ttl_mins" mapstructure:"idle_ttl_mins"`
	SweepIntervalMins int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// IdleTTL returns how long an untouched session is kept; zero disables eviction.
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMins) * time.Minute
}

// SweepInterval returns the janitor period.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMins) * time.Minute
}

// CacheConfig configures the price report cache.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	TTLMins     int    `yaml:"ttl_mins" mapstructure:"ttl_mins"`
}

// TTL returns how long a cached report stays valid.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMins) * time.Minute
}

// CircuitConfig configures per-source circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RetryConfig configures model call retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HAGGLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.key", "HAGGLE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("fetch.timeout_secs", 7)
	v.SetDefault("fetch.max_concurrent", 0)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.rate_per_host", 0.0)
	v.SetDefault("fetch.detect_blocks", true)
	v.SetDefault("sources.craigslist_cities", sources.DefaultCraigslistCities)
	v.SetDefault("session.max_history_turns", 10)
	v.SetDefault("session.max_total_messages", 50)
	v.SetDefault("session.idle_ttl_mins", 24*60)
	v.SetDefault("session.sweep_interval_mins", 10)
	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.ttl_mins", 30)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve" or "price".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Session.MaxHistoryTurns <= 0 {
			errs = append(errs, "session.max_history_turns must be > 0")
		}
		if c.Session.MaxTotalMessages <= 0 {
			errs = append(errs, "session.max_total_messages must be > 0")
		}
		if c.Session.IdleTTLMins < 0 {
			errs = append(errs, "session.idle_ttl_mins must be >= 0")
		}
	case "price":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxConcurrent < 0 {
		errs = append(errs, "fetch.max_concurrent must be >= 0")
	}
	switch strings.ToLower(c.Cache.Driver) {
	case "", "none":
	case "sqlite", "postgres":
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, fmt.Sprintf("cache.database_url is required for driver %s", c.Cache.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not one of none, sqlite, postgres", c.Cache.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
