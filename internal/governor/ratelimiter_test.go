package governor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
)

type RateLimiterTestSuite struct {
	suite.Suite
	rl    *RateLimiter
	clock time.Time
	slept []time.Duration
}

func (s *RateLimiterTestSuite) SetupTest() {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	cfg := config.RateLimitConfig{
		Default: config.RateLimitRule{
			MaxRequests: 10,
			TimeWindow:  time.Minute,
			DelayMin:    time.Second,
			DelayMax:    5 * time.Second,
			BurstLimit:  5,
		},
		Domains: map[string]config.RateLimitRule{
			"fast.example.com": {
				MaxRequests: 600,
				TimeWindow:  time.Minute,
				DelayMin:    0,
				DelayMax:    time.Second,
				BurstLimit:  100,
			},
		},
		Backoff: config.BackoffConfig{
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Minute,
			Multiplier: 2.0,
		},
	}

	s.clock = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.slept = nil
	s.rl = NewRateLimiter(cfg, log)
	s.rl.now = func() time.Time { return s.clock }
	s.rl.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.slept = append(s.slept, d)
		s.clock = s.clock.Add(d)
		return nil
	}
}

func TestRateLimiterTestSuite(t *testing.T) {
	suite.Run(t, new(RateLimiterTestSuite))
}

func (s *RateLimiterTestSuite) TestAcquire_FirstRequestImmediate() {
	waited, err := s.rl.Acquire(context.Background(), "mediamarkt.de")
	s.NoError(err)
	s.Equal(time.Duration(0), waited)
}

func (s *RateLimiterTestSuite) TestAcquire_EnforcesMinDelay() {
	_, err := s.rl.Acquire(context.Background(), "mediamarkt.de")
	s.NoError(err)

	waited, err := s.rl.Acquire(context.Background(), "mediamarkt.de")
	s.NoError(err)
	// One second minimum spacing, jittered +-20%.
	s.GreaterOrEqual(waited, 800*time.Millisecond)
	s.LessOrEqual(waited, 1200*time.Millisecond)
}

func (s *RateLimiterTestSuite) TestAcquire_RollingWindowCap() {
	ctx := context.Background()
	domain := "fast.example.com"

	// Shrink the window so the cap binds before the burst runs out.
	s.rl.cfg.Domains[domain] = config.RateLimitRule{
		MaxRequests: 3,
		TimeWindow:  time.Minute,
		DelayMin:    0,
		DelayMax:    time.Second,
		BurstLimit:  3,
	}

	for i := 0; i < 3; i++ {
		_, err := s.rl.Acquire(ctx, domain)
		s.NoError(err)
	}

	start := s.clock
	_, err := s.rl.Acquire(ctx, domain)
	s.NoError(err)

	// The fourth request cannot land inside the same window as the first
	// three, jitter notwithstanding.
	s.GreaterOrEqual(s.clock.Sub(start), 59*time.Second)

	st := s.rl.state(domain)
	s.LessOrEqual(len(st.requests), 3)
}

func (s *RateLimiterTestSuite) TestAcquire_TokenBucketRefill() {
	ctx := context.Background()
	domain := "fast.example.com"

	// Drain the burst.
	for i := 0; i < 100; i++ {
		_, err := s.rl.Acquire(ctx, domain)
		s.NoError(err)
	}

	st := s.rl.state(domain)
	s.Less(st.tokens, 1.0)

	// 600 req/min refills at 10 tokens per second.
	s.clock = s.clock.Add(2 * time.Second)
	st.refill(s.clock)
	s.InDelta(20.0, st.tokens, 1.0)
}

func (s *RateLimiterTestSuite) TestAcquire_CancelConsumesNothing() {
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.rl.Acquire(ctx, "mediamarkt.de")
	s.NoError(err)

	st := s.rl.state("mediamarkt.de")
	tokensBefore := st.tokens
	requestsBefore := len(st.requests)

	cancel()
	_, err = s.rl.Acquire(ctx, "mediamarkt.de")
	s.ErrorIs(err, context.Canceled)

	s.Equal(tokensBefore, st.tokens)
	s.Equal(requestsBefore, len(st.requests))
}

func (s *RateLimiterTestSuite) TestOnFailure_ExponentialGrowth() {
	domain := "mediamarkt.de"

	first := s.rl.OnFailure(domain, errors.New("connection reset"))
	second := s.rl.OnFailure(domain, errors.New("connection reset"))
	third := s.rl.OnFailure(domain, errors.New("connection reset"))

	// Jitter is +-25% of the deterministic schedule: 2s, 4s, 8s.
	s.InDelta((2 * time.Second).Seconds(), first.Seconds(), 0.5)
	s.InDelta((4 * time.Second).Seconds(), second.Seconds(), 1.0)
	s.InDelta((8 * time.Second).Seconds(), third.Seconds(), 2.0)

	st := s.rl.state(domain)
	s.Equal(8*time.Second, st.backoff.currentDelay())
}

func (s *RateLimiterTestSuite) TestOnFailure_CappedAtMax() {
	domain := "mediamarkt.de"
	for i := 0; i < 20; i++ {
		s.rl.OnFailure(domain, errors.New("connection reset"))
	}

	st := s.rl.state(domain)
	s.Equal(5*time.Minute, st.backoff.currentDelay())
}

func (s *RateLimiterTestSuite) TestOnFailure_RateLimitResponse() {
	domain := "mediamarkt.de"

	delay := s.rl.OnFailure(domain, errors.New("HTTP 429 Too Many Requests"))
	s.GreaterOrEqual(delay, time.Minute)

	st := s.rl.state(domain)
	s.Equal(2*time.Second, st.rule.DelayMin)
}

func (s *RateLimiterTestSuite) TestOnFailure_DelayMinCappedAtDelayMax() {
	domain := "mediamarkt.de"
	for i := 0; i < 5; i++ {
		s.rl.OnFailure(domain, errors.New("503 Service Unavailable"))
	}

	st := s.rl.state(domain)
	s.Equal(5*time.Second, st.rule.DelayMin)
}

func (s *RateLimiterTestSuite) TestOnSuccess_ResetsBackoff() {
	domain := "mediamarkt.de"
	s.rl.OnFailure(domain, errors.New("connection reset"))
	s.rl.OnFailure(domain, errors.New("connection reset"))

	s.rl.OnSuccess(domain, time.Second)

	st := s.rl.state(domain)
	s.Equal(0, st.backoff.failures)
	s.Equal(time.Second, st.backoff.currentDelay())
}

func (s *RateLimiterTestSuite) TestOnSuccess_AdaptiveSpacing() {
	domain := "mediamarkt.de"

	// Slow responses widen the spacing.
	s.rl.OnSuccess(domain, 15*time.Second)
	st := s.rl.state(domain)
	s.Equal(1100*time.Millisecond, st.rule.DelayMin)

	// Fast responses narrow it, never below 500ms.
	for i := 0; i < 100; i++ {
		s.rl.OnSuccess(domain, time.Second)
	}
	s.Equal(500*time.Millisecond, st.rule.DelayMin)
}

func (s *RateLimiterTestSuite) TestReset() {
	domain := "mediamarkt.de"
	_, err := s.rl.Acquire(context.Background(), domain)
	s.NoError(err)
	s.rl.OnFailure(domain, errors.New("connection reset"))

	s.rl.Reset(domain)

	st := s.rl.state(domain)
	s.Empty(st.requests)
	s.Equal(0, st.backoff.failures)
	s.Equal(time.Second, st.rule.DelayMin)
}

func (s *RateLimiterTestSuite) TestStats() {
	ctx := context.Background()
	_, err := s.rl.Acquire(ctx, "mediamarkt.de")
	s.NoError(err)
	_, err = s.rl.Acquire(ctx, "fast.example.com")
	s.NoError(err)

	stats := s.rl.Stats()
	s.Len(stats, 2)
	s.Equal(1, stats["mediamarkt.de"].RecentRequests)
	s.Equal(10, stats["mediamarkt.de"].MaxRequests)
	s.InDelta(0.1, stats["mediamarkt.de"].Utilization, 0.001)
}

func (s *RateLimiterTestSuite) TestIsRateLimitError() {
	s.True(isRateLimitError(errors.New("HTTP 429")))
	s.True(isRateLimitError(errors.New("Rate Limit exceeded")))
	s.True(isRateLimitError(errors.New("503 Service Unavailable")))
	s.False(isRateLimitError(errors.New("connection refused")))
	s.False(isRateLimitError(nil))
}

func (s *RateLimiterTestSuite) TestBackoffJitterBounds() {
	for i := 0; i < 100; i++ {
		d := jitter(4*time.Second, 0.25)
		s.GreaterOrEqual(d, 3*time.Second)
		s.LessOrEqual(d, 5*time.Second)
	}
}
