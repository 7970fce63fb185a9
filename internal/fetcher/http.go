package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vetref/electrolyte-cli/internal/resilience"
)

// DefaultMaxBodyBytes caps a ruleset download.
const DefaultMaxBodyBytes = 4 << 20

// HTTPOptions configures NewHTTPFetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Retry        resilience.Policy
	MaxBodyBytes int64
	// HostRate is the steady request rate allowed per host.
	HostRate  rate.Limit
	HostBurst int
	Client    *http.Client
}

// AdaptiveLimiter is a per-host rate limiter that backs off on 429 and
// recovers on success, staying between a quarter and twice its initial rate.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter returns a limiter starting at r.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{limiter: rate.NewLimiter(r, burst), initial: r, current: r}
}

// Wait blocks until a request may proceed.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(min(a.Limit()*1.2, a.initial*2))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.set(max(a.Limit()*0.5, a.initial/4))
	zap.L().Warn("fetcher: rate limited, slowing down", zap.Float64("rate", float64(a.Limit())))
}

// Limit is the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = r
	a.limiter.SetLimit(r)
}

// HTTPFetcher implements Fetcher with per-host rate limiting and retries of
// transient failures.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "electrolyte-cli/1.0"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.HostRate <= 0 {
		opts.HostRate = 5
	}
	if opts.HostBurst <= 0 {
		opts.HostBurst = 5
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.LogRetry("http")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPFetcher{client: client, opts: opts, limiters: make(map[string]*AdaptiveLimiter)}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(f.opts.HostRate, f.opts.HostBurst)
		f.limiters[host] = lim
	}
	return lim
}

// Get downloads rawURL, retrying 408, 429, 5xx and network failures.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (Document, error) {
	doc, _, err := f.GetIfChanged(ctx, rawURL, "")
	return doc, err
}

// GetIfChanged downloads rawURL with If-None-Match set to etag.
func (f *HTTPFetcher) GetIfChanged(ctx context.Context, rawURL, etag string) (Document, bool, error) {
	type result struct {
		doc     Document
		changed bool
	}
	lim := f.limiterFor(rawURL)

	res, err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) (result, error) {
		if err := lim.Wait(ctx); err != nil {
			return result{}, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return result{}, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return result{}, eris.Wrapf(err, "fetcher: get %s", rawURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		switch {
		case resp.StatusCode == http.StatusNotModified && etag != "":
			lim.OnSuccess()
			return result{doc: Document{ETag: etag}}, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lim.OnRateLimit()
			return result{}, resilience.StatusError(resp.StatusCode, rawURL)
		case resp.StatusCode != http.StatusOK:
			return result{}, resilience.StatusError(resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
		if err != nil {
			return result{}, resilience.Transient(eris.Wrap(err, "fetcher: read body"), 0)
		}
		if int64(len(body)) > f.opts.MaxBodyBytes {
			return result{}, eris.Errorf("fetcher: body of %s exceeds %d bytes", rawURL, f.opts.MaxBodyBytes)
		}
		lim.OnSuccess()
		return result{
			doc: Document{
				Body:        body,
				ETag:        resp.Header.Get("ETag"),
				ContentType: resp.Header.Get("Content-Type"),
			},
			changed: true,
		}, nil
	})
	if err != nil {
		return Document{}, false, err
	}
	return res.doc, res.changed, nil
}
