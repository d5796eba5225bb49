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

	"github.com/sells-group/census-consolidator/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	// UserAgent is sent on every request. Census servers reject some
	// default client agents, so this is always set explicitly.
	UserAgent string
	Timeout   time.Duration
	// RatePerSec limits requests per host; 0 disables limiting.
	RatePerSec float64
	Retry      resilience.Policy
}

// HTTPFetcher implements Fetcher using net/http with per-host rate limiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DefaultUserAgent identifies this tool to the Census Bureau.
const DefaultUserAgent = "census-consolidator/1.0"

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Retry.Name == "" {
		opts.Retry.Name = "http.download"
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RatePerSec <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		burst := int(f.opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerSec), burst)
		f.limiters[u.Host] = lim
	}
	return lim
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if lim := f.limiterFor(rawURL); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "http get")
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return resp, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var resp *http.Response
	err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) error {
		r, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes the full body to path.
// A body cut short is retried like any other transient failure.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	log := zap.L().With(zap.String("component", "fetcher.http"), zap.String("url", rawURL))

	var n int64
	err := resilience.Do(ctx, f.opts.Retry, func(ctx context.Context) error {
		resp, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck

		n, err = copyToFile(resp.Body, path)
		return err
	})
	if err != nil {
		return n, eris.Wrap(err, "download")
	}

	log.Debug("download complete", zap.Int64("bytes", n))
	return n, nil
}
