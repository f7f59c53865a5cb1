package governor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

type FetcherTestSuite struct {
	suite.Suite
	fetcher *Fetcher
	pool    *Pool
	limiter *RateLimiter
}

func (s *FetcherTestSuite) SetupTest() {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	poolCfg := config.ProxyPoolConfig{
		Proxies:        []config.ProxyConfig{{Host: "10.0.0.1", Port: 8080}},
		MaxFailures:    3,
		BanCooldown:    24 * time.Hour,
		FailedCooldown: time.Hour,
		BanIndicators:  []string{"forbidden", "captcha", "too many requests"},
	}
	rlCfg := config.RateLimitConfig{
		Default: config.RateLimitRule{
			MaxRequests: 1000,
			TimeWindow:  time.Minute,
			DelayMin:    0,
			DelayMax:    time.Second,
			BurstLimit:  100,
		},
		Backoff: config.BackoffConfig{
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Minute,
			Multiplier: 2.0,
		},
	}

	s.pool = NewPool(poolCfg, log)
	s.limiter = NewRateLimiter(rlCfg, log)
	s.fetcher = NewFetcher(s.pool, s.limiter, 5*time.Second, log)
	// Tests talk to a local httptest server; skip the proxy hop.
	s.fetcher.transport = func(string) http.RoundTripper {
		return http.DefaultTransport
	}
}

func TestFetcherTestSuite(t *testing.T) {
	suite.Run(t, new(FetcherTestSuite))
}

func (s *FetcherTestSuite) TestFetch_Success() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := s.fetcher.Fetch(context.Background(), server.URL)
	s.NoError(err)
	s.JSONEq(`{"ok":true}`, string(body))

	p := s.pool.proxies[0]
	s.Equal(1, p.SuccessCount)
	s.Equal(ProxyStatusActive, p.Status)
}

func (s *FetcherTestSuite) TestFetch_ServerErrorIsRetryable() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := s.fetcher.Fetch(context.Background(), server.URL)
	s.Error(err)

	var retryable *RetryableError
	s.ErrorAs(err, &retryable)
	// 503 responses count as rate limiting: at least a minute of backoff.
	s.GreaterOrEqual(retryable.RetryAfter, time.Minute)
	s.ErrorIs(err, models.ErrRateLimited)
	s.Equal(1, s.pool.proxies[0].FailureCount)
}

func (s *FetcherTestSuite) TestFetch_BanResponseBansProxy() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := s.fetcher.Fetch(context.Background(), server.URL)
	s.Error(err)
	s.ErrorIs(err, models.ErrProxyBanned)
	s.Equal(ProxyStatusBanned, s.pool.proxies[0].Status)

	// The only proxy is banned, the next fetch has nothing to use.
	_, err = s.fetcher.Fetch(context.Background(), server.URL)
	s.ErrorIs(err, models.ErrNoProxyAvailable)
}

func (s *FetcherTestSuite) TestFetch_InvalidURL() {
	_, err := s.fetcher.Fetch(context.Background(), "::not-a-url")
	s.Error(err)
}

func (s *FetcherTestSuite) TestFetch_CancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := s.fetcher.Fetch(ctx, server.URL)
	s.Error(err)
	s.False(errors.Is(err, models.ErrNoProxyAvailable))
}
