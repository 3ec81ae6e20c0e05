package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; marketplaces serve reduced or
// empty result pages to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	MaxBodyBytes int64
	// RatePerHost limits requests per second to a single host; burst equals
	// the rate rounded up. Zero disables limiting.
	RatePerHost  float64
	DetectBlocks bool
	Transport    http.RoundTripper
}

// HTTPFetcher fetches documents with net/http.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with
// defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &HTTPFetcher{
		client:   &http.Client{Transport: transport},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RatePerHost <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(f.opts.RatePerHost)
		if float64(burst) < f.opts.RatePerHost {
			burst++
		}
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerHost), burst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch GETs rawURL, bounded by timeout. Any non-2xx status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Document, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: eris.Wrap(err, "rate limiter wait")}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: rawURL, Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Debug("fetcher: non-success status",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &Error{Kind: KindNonSuccess, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, classify(rawURL, eris.Wrap(err, "read body"))
	}

	doc := &Document{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if f.opts.DetectBlocks {
		doc.Block = DetectBlock(resp, body)
	}
	return doc, nil
}
