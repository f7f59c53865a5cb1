package governor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
)

// domainState is the pacing state for one target domain. Its lock is held for
// the full duration of Acquire, including the sleep, so requests to the same
// domain are strictly serialized while different domains proceed in parallel.
type domainState struct {
	mu sync.Mutex

	rule       config.RateLimitRule
	tokens     float64
	lastRefill time.Time
	lastReq    time.Time
	requests   []time.Time
	backoff    *backoff
}

// RateLimiter paces outbound requests per domain with a token bucket plus a
// hard rolling-window cap, and tracks exponential backoff for failing
// domains. Acquire is the only blocking entry point.
type RateLimiter struct {
	mu      sync.Mutex
	domains map[string]*domainState

	cfg    config.RateLimitConfig
	logger *logrus.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter(cfg config.RateLimitConfig, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		domains: make(map[string]*domainState),
		cfg:     cfg,
		logger:  log,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (rl *RateLimiter) state(domain string) *domainState {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st, ok := rl.domains[domain]
	if !ok {
		rule := rl.cfg.Default
		if domainRule, ok := rl.cfg.Domains[domain]; ok {
			rule = domainRule
		}
		st = &domainState{
			rule:       rule,
			tokens:     float64(rule.BurstLimit),
			lastRefill: rl.now(),
			backoff:    newBackoff(rl.cfg.Backoff),
		}
		rl.domains[domain] = st
	}
	return st
}

// Acquire blocks until the caller may send one request to domain, then
// consumes a token and records the request. It returns the time actually
// waited. Cancellation via ctx aborts the wait without consuming a token or
// recording a request.
func (rl *RateLimiter) Acquire(ctx context.Context, domain string) (time.Duration, error) {
	st := rl.state(domain)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := rl.now()
	st.refill(now)
	st.prune(now)

	delay, windowWait := st.delayNeeded(now)

	var waited time.Duration
	if delay > 0 {
		wait := jitter(delay, 0.2)
		// Jitter may only shorten the soft pacing delay; the rolling
		// window cap is a hard limit.
		if wait < windowWait {
			wait = windowWait
		}
		if err := rl.sleep(ctx, wait); err != nil {
			return 0, err
		}
		waited = wait
		now = rl.now()
		st.refill(now)
		st.prune(now)
	}

	st.tokens--
	st.lastReq = now
	st.requests = append(st.requests, now)

	recordRateLimitWait(domain, waited)
	return waited, nil
}

// refill adds tokens at MaxRequests/TimeWindow, capped at the burst limit.
func (st *domainState) refill(now time.Time) {
	elapsed := now.Sub(st.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rate := float64(st.rule.MaxRequests) / st.rule.TimeWindow.Seconds()
	st.tokens += elapsed * rate
	if burst := float64(st.rule.BurstLimit); st.tokens > burst {
		st.tokens = burst
	}
	st.lastRefill = now
}

func (st *domainState) prune(now time.Time) {
	cutoff := now.Add(-st.rule.TimeWindow)
	i := 0
	for i < len(st.requests) && !st.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		st.requests = append(st.requests[:0], st.requests[i:]...)
	}
}

// delayNeeded returns the combined wait before the next request may go out,
// and separately the portion imposed by the rolling-window cap, which callers
// must never undercut.
func (st *domainState) delayNeeded(now time.Time) (delay, windowWait time.Duration) {
	// Token bucket: wait for one token to accrue.
	if st.tokens < 1 {
		rate := float64(st.rule.MaxRequests) / st.rule.TimeWindow.Seconds()
		delay = time.Duration((1 - st.tokens) / rate * float64(time.Second))
	}

	// Minimum spacing between consecutive requests.
	if !st.lastReq.IsZero() {
		if since := now.Sub(st.lastReq); since < st.rule.DelayMin {
			if d := st.rule.DelayMin - since; d > delay {
				delay = d
			}
		}
	}

	// Rolling window: at most MaxRequests in any TimeWindow.
	if len(st.requests) >= st.rule.MaxRequests {
		oldest := st.requests[len(st.requests)-st.rule.MaxRequests]
		windowWait = oldest.Add(st.rule.TimeWindow).Sub(now)
		if windowWait < 0 {
			windowWait = 0
		}
		if windowWait > delay {
			delay = windowWait
		}
	}
	return delay, windowWait
}

// OnSuccess resets the domain's backoff schedule and nudges its pacing: slow
// responses widen the minimum delay, fast responses narrow it toward a 500ms
// floor.
func (rl *RateLimiter) OnSuccess(domain string, responseTime time.Duration) {
	st := rl.state(domain)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.backoff.onSuccess()

	switch {
	case responseTime > 10*time.Second:
		st.rule.DelayMin = capDuration(time.Duration(float64(st.rule.DelayMin)*1.1), st.rule.DelayMax)
	case responseTime < 2*time.Second:
		st.rule.DelayMin = time.Duration(float64(st.rule.DelayMin) * 0.95)
		if st.rule.DelayMin < 500*time.Millisecond {
			st.rule.DelayMin = 500 * time.Millisecond
		}
	}
}

// OnFailure advances the domain's backoff schedule and returns the delay the
// caller should wait before retrying. Rate-limit responses from the target
// force at least a minute of backoff and durably double the domain's minimum
// spacing. This never sleeps.
func (rl *RateLimiter) OnFailure(domain string, err error) time.Duration {
	st := rl.state(domain)

	st.mu.Lock()
	defer st.mu.Unlock()

	delay := st.backoff.onFailure()

	if isRateLimitError(err) {
		st.rule.DelayMin = capDuration(st.rule.DelayMin*2, st.rule.DelayMax)
		if delay < time.Minute {
			delay = time.Minute
		}
		recordRateLimitHit(domain)
		rl.logger.WithFields(logrus.Fields{
			"domain":    domain,
			"delay_min": st.rule.DelayMin,
			"backoff":   delay,
		}).Warn("Target is rate limiting, widening request spacing")
	}

	recordBackoffDelay(domain, delay)
	return delay
}

// Reset clears all accumulated state for a domain, restoring its configured
// rule and an empty request history.
func (rl *RateLimiter) Reset(domain string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.domains, domain)
}

var rateLimitSignatures = []string{
	"rate limit",
	"too many requests",
	"429",
	"503",
	"service unavailable",
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

func capDuration(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

// DomainStats is a point-in-time view of one domain's pacing state.
type DomainStats struct {
	RecentRequests int           `json:"recent_requests"`
	MaxRequests    int           `json:"max_requests"`
	Tokens         float64       `json:"tokens"`
	DelayMin       time.Duration `json:"delay_min"`
	FailureCount   int           `json:"failure_count"`
	CurrentBackoff time.Duration `json:"current_backoff"`
	Utilization    float64       `json:"utilization"`
}

func (rl *RateLimiter) Stats() map[string]DomainStats {
	rl.mu.Lock()
	domains := make(map[string]*domainState, len(rl.domains))
	for name, st := range rl.domains {
		domains[name] = st
	}
	rl.mu.Unlock()

	now := rl.now()
	out := make(map[string]DomainStats, len(domains))
	for name, st := range domains {
		st.mu.Lock()
		st.refill(now)
		st.prune(now)
		out[name] = DomainStats{
			RecentRequests: len(st.requests),
			MaxRequests:    st.rule.MaxRequests,
			Tokens:         st.tokens,
			DelayMin:       st.rule.DelayMin,
			FailureCount:   st.backoff.failures,
			CurrentBackoff: st.backoff.currentDelay(),
			Utilization:    float64(len(st.requests)) / float64(st.rule.MaxRequests),
		}
		st.mu.Unlock()
	}
	return out
}
