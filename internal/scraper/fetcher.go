// Package scraper performs single-page fetches of storefront search results,
// with UA rotation, optional proxy rotation, and bot-challenge detection.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hawkshop/hawker/pkg/httpclient"
	"github.com/hawkshop/hawker/pkg/proxy"
	"github.com/hawkshop/hawker/pkg/ratelimit"
	"github.com/hawkshop/hawker/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// Result captures one page fetch. Err is non-empty when the fetch failed
// before an HTTP response was read.
type Result struct {
	ID         string
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Blocked    bool
	BlockedBy  string // e.g. "Cloudflare", "Akamai"
	FetchedAt  time.Time
	Err        string
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  httpclient.Profile
	Limiter      *ratelimit.Limiter
}

// Fetcher fetches single pages using the configured bypass strategies. One
// Fetcher is shared across requests so cookies and connections persist.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 6 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = httpclient.ProfileChrome
	}

	// The proxy function reads from the request context so the pool can
	// rotate per request without touching the shared transport.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		if req.URL.Hostname() == "127.0.0.1" || req.URL.Hostname() == "localhost" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Fingerprint:  cfg.Fingerprint,
		Proxy:        proxyFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
	}, nil
}

// Fetch executes a GET against the target URL and captures the response,
// running block detection on whatever came back. Transport-level failures are
// reported in Result.Err, not as a returned error, so callers can persist and
// classify partial results uniformly.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	result := &Result{
		ID:        uuid.New().String(),
		URL:       targetURL,
		FetchedAt: start.UTC(),
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			result.Err = fmt.Sprintf("rate limiter failed: %v", err)
			return result, nil
		}
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Err = fmt.Sprintf("failed to create request: %v", err)
		result.Duration = time.Since(start)
		return result, nil
	}

	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
		}
		result.Err = fmt.Sprintf("request failed: %v", err)
		result.Duration = time.Since(start)
		return result, nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Sprintf("failed to read body: %v", err)
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.Body = body
	result.Duration = time.Since(start)

	// Identify whether a bot-protection layer served us a challenge page
	Detect(result, DefaultDetectors())

	return result, nil
}
