package governor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// Fetcher is the shared front door for outbound scrape requests: it paces the
// call through the rate limiter, routes it over a pool proxy, and feeds the
// outcome back to both. Scrapers hold one Fetcher and call Fetch per URL.
type Fetcher struct {
	pool    *Pool
	limiter *RateLimiter
	timeout time.Duration
	logger  *logrus.Logger

	// transport is swappable for tests.
	transport func(proxyURL string) http.RoundTripper
}

func NewFetcher(pool *Pool, limiter *RateLimiter, timeout time.Duration, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		pool:    pool,
		limiter: limiter,
		timeout: timeout,
		logger:  log,
		transport: func(proxyURL string) http.RoundTripper {
			parsed, err := url.Parse(proxyURL)
			if err != nil {
				return http.DefaultTransport
			}
			return &http.Transport{Proxy: http.ProxyURL(parsed)}
		},
	}
}

// Fetch issues one governed GET. On failure the returned RetryAfter carries
// the backoff delay the caller should respect before requeueing; the fetcher
// itself never sleeps beyond the rate-limit wait.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	domain := parsed.Hostname()

	if _, err := f.limiter.Acquire(ctx, domain); err != nil {
		return nil, err
	}

	proxy, err := f.pool.Next()
	if err != nil {
		return nil, err
	}

	body, elapsed, err := f.fetchOnce(ctx, proxy, rawURL)
	f.pool.ReportOutcome(proxy, elapsed, err)

	if err != nil {
		delay := f.limiter.OnFailure(domain, err)
		f.logger.WithFields(logrus.Fields{
			"url":         rawURL,
			"proxy":       proxy.Host,
			"retry_after": delay,
			"error":       err.Error(),
		}).Warn("Fetch failed")
		return nil, &RetryableError{Err: f.classify(err), RetryAfter: delay}
	}

	f.limiter.OnSuccess(domain, elapsed)
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, proxy *Proxy, rawURL string) ([]byte, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}

	client := &http.Client{
		Transport: f.transport(proxy.URL()),
		Timeout:   f.timeout,
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Status text feeds ban detection and rate-limit
		// classification downstream.
		return nil, elapsed, fmt.Errorf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, elapsed, err
	}
	return body, elapsed, nil
}

// classify maps raw transport failures onto the fetch-error taxonomy so
// callers can branch on sentinel identity instead of string matching.
func (f *Fetcher) classify(err error) error {
	switch {
	case f.pool.isBanError(err):
		return fmt.Errorf("%w: %v", models.ErrProxyBanned, err)
	case isRateLimitError(err):
		return fmt.Errorf("%w: %v", models.ErrRateLimited, err)
	default:
		return err
	}
}

// RetryableError wraps a fetch failure with the backoff the governor computed
// for it. Callers requeue the URL after RetryAfter.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("fetch failed (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
