package pricing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/haggle/internal/fetcher"
	"github.com/sells-group/haggle/internal/model"
	"github.com/sells-group/haggle/internal/sources"
	"github.com/sells-group/haggle/internal/store"
)

// DefaultCacheTTL is used when a cache is configured without a TTL.
const DefaultCacheTTL = 30 * time.Minute

// Dispatcher fans a subject out to every source.
type Dispatcher interface {
	FetchAll(ctx context.Context, subject string) []fetcher.FetchResult
}

// Service runs a full price lookup: fetch, extract, aggregate.
type Service struct {
	registry   *sources.Registry
	dispatcher Dispatcher
	cache      store.Cache
	cacheTTL   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores reports in c for ttl.
func WithCache(c store.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewService creates a Service.
func NewService(reg *sources.Registry, d Dispatcher, opts ...Option) *Service {
	s := &Service{registry: reg, dispatcher: d, cacheTTL: DefaultCacheTTL}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lookup returns the price report for subject. It never fails: source and
// cache errors are logged and degrade to fewer (or no) findings.
func (s *Service) Lookup(ctx context.Context, subject string) model.PriceReport {
	if s.cache != nil {
		cached, err := s.cache.GetReport(ctx, subject)
		if err != nil {
			zap.L().Warn("pricing: cache read failed", zap.String("subject", subject), zap.Error(err))
		} else if cached != nil {
			zap.L().Debug("pricing: cache hit", zap.String("subject", subject))
			cached.Subject = subject
			return *cached
		}
	}

	results := s.dispatcher.FetchAll(ctx, subject)
	report := Aggregate(subject, Extract(s.registry, results))

	zap.L().Info("pricing: lookup complete",
		zap.String("subject", subject),
		zap.Int("entries", len(report.Entries)),
	)

	if s.cache != nil && report.Found {
		if err := s.cache.SetReport(ctx, report, s.cacheTTL); err != nil {
			zap.L().Warn("pricing: cache write failed", zap.String("subject", subject), zap.Error(err))
		}
	}
	return report
}
