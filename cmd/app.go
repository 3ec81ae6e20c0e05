package main

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/chat"
	"github.com/sells-group/haggle/internal/classify"
	"github.com/sells-group/haggle/internal/dialogue"
	"github.com/sells-group/haggle/internal/fetcher"
	"github.com/sells-group/haggle/internal/pricing"
	"github.com/sells-group/haggle/internal/resilience"
	"github.com/sells-group/haggle/internal/sources"
	"github.com/sells-group/haggle/internal/store"
	"github.com/sells-group/haggle/pkg/anthropic"
)

// appEnv holds everything the serve and price commands need.
type appEnv struct {
	Registry *sources.Registry
	Prices   *pricing.Service
	Dialogue *dialogue.Manager
	Chat     *chat.Service
	Cache    store.Cache // may be nil
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initApp validates cfg for mode and wires the registry, fetcher, cache,
// dialogue store and model. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	reg, err := sources.Default(cfg.Sources.CraigslistCities)
	if err != nil {
		return nil, err
	}

	cache, err := store.Open(ctx, cfg.Cache.Driver, cfg.Cache.DatabaseURL)
	if err != nil {
		return nil, err
	}

	breakerCfg := resilience.FromBreakerConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs)
	breakerCfg.OnStateChange = logBreakerTransition

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		RatePerHost:  cfg.Fetch.RatePerHost,
		DetectBlocks: cfg.Fetch.DetectBlocks,
	})
	dispatcher := fetcher.NewDispatcher(reg, httpFetcher, fetcher.DispatcherOptions{
		Timeout:       cfg.Fetch.Timeout(),
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		Breakers:      resilience.NewBreakers(breakerCfg),
	})

	var priceOpts []pricing.Option
	if cache != nil {
		priceOpts = append(priceOpts, pricing.WithCache(cache, cfg.Cache.TTL()))
	}
	prices := pricing.NewService(reg, dispatcher, priceOpts...)

	dm := dialogue.NewManager(dialogue.NewMemoryStore(), dialogue.Options{
		MaxHistoryTurns:  cfg.Session.MaxHistoryTurns,
		MaxTotalMessages: cfg.Session.MaxTotalMessages,
	})

	env := &appEnv{
		Registry: reg,
		Prices:   prices,
		Dialogue: dm,
		Cache:    cache,
	}
	env.Chat = chat.NewService(dm, classify.New(), prices, initModel(breakerCfg))

	zap.L().Info("haggle initialized",
		zap.Int("sources", reg.Len()),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Bool("model_configured", cfg.Anthropic.Key != ""),
	)
	return env, nil
}

// initModel returns nil when no API key is configured.
func initModel(breakerCfg resilience.BreakerConfig) chat.Model {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic key not configured; chat replies are disabled and price checks return reports only")
		return nil
	}

	opts := []option.RequestOption{
		// Retries are handled by the chat model.
		option.WithMaxRetries(0),
	}
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
	}

	return chat.NewAnthropicModel(anthropic.NewClient(cfg.Anthropic.Key, opts...), chat.ModelConfig{
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		CacheTTL:  cfg.Anthropic.CacheTTL,
		Retry:     resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs),
		Breaker:   resilience.NewBreaker("anthropic", breakerCfg),
	})
}

func logBreakerTransition(name string, from, to resilience.State) {
	zap.L().Warn("circuit breaker state change",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
