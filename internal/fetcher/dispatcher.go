package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/haggle/internal/resilience"
	"github.com/sells-group/haggle/internal/sources"
)

// DefaultTimeout bounds each source fetch.
const DefaultTimeout = 7 * time.Second

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Timeout applies to each source independently. Default: 7s.
	Timeout time.Duration
	// MaxConcurrent caps in-flight fetches; zero fetches every source at once.
	MaxConcurrent int
	// Breakers, when set, skips sources whose circuit is open.
	Breakers *resilience.Breakers
}

// Dispatcher fans a subject out to every source in a registry.
type Dispatcher struct {
	registry *sources.Registry
	fetcher  Fetcher
	opts     DispatcherOptions
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reg *sources.Registry, f Fetcher, opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{registry: reg, fetcher: f, opts: opts}
}

// FetchAll fetches subject from every source concurrently and returns one
// result per source in registry order. It returns only after every fetch
// has settled; a failing source never affects the others.
func (d *Dispatcher) FetchAll(ctx context.Context, subject string) []FetchResult {
	srcs := d.registry.Sources()
	results := make([]FetchResult, len(srcs))

	var g errgroup.Group
	if d.opts.MaxConcurrent > 0 {
		g.SetLimit(d.opts.MaxConcurrent)
	}

	start := time.Now()
	for i, src := range srcs {
		g.Go(func() error {
			results[i] = d.fetchOne(ctx, src, subject)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	zap.L().Info("fetcher: dispatch complete",
		zap.String("subject", subject),
		zap.Int("sources", len(results)),
		zap.Int("succeeded", ok),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func (d *Dispatcher) fetchOne(ctx context.Context, src sources.Source, subject string) (res FetchResult) {
	u := src.URL(subject)
	res = FetchResult{SourceID: src.ID, URL: u}

	defer func() {
		if p := recover(); p != nil {
			res.Document = ""
			res.Err = &Error{Kind: KindUnknown, URL: u, Err: eris.Errorf("panic: %v", p)}
			zap.L().Error("fetcher: panic while fetching",
				zap.String("source", src.ID),
				zap.Any("panic", p),
			)
		}
	}()

	fetch := func(ctx context.Context) (*Document, error) {
		return d.fetcher.Fetch(ctx, u, d.opts.Timeout)
	}

	var (
		doc *Document
		err error
	)
	if d.opts.Breakers != nil {
		doc, err = resilience.ExecuteVal(ctx, d.opts.Breakers.Get(src.ID), fetch)
	} else {
		doc, err = fetch(ctx)
	}

	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = &Error{Kind: KindCircuitOpen, URL: u, Err: err}
		}
		res.Err = err
		zap.L().Warn("fetcher: source failed",
			zap.String("source", src.ID),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)
		return res
	}
	if doc == nil {
		res.Err = &Error{Kind: KindUnknown, URL: u, Err: eris.New("nil document")}
		return res
	}

	res.Document = doc.Body
	res.Block = doc.Block
	return res
}
