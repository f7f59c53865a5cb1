package governor

import (
	"math"
	"math/rand"
	"time"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
)

// backoff tracks the exponential retry delay for one domain. The tracked
// delay grows deterministically with consecutive failures; jitter is applied
// only to the values handed out, never to the tracked state.
type backoff struct {
	base       time.Duration
	max        time.Duration
	multiplier float64

	failures int
	current  time.Duration
}

func newBackoff(cfg config.BackoffConfig) *backoff {
	return &backoff{
		base:       cfg.BaseDelay,
		max:        cfg.MaxDelay,
		multiplier: cfg.Multiplier,
		current:    cfg.BaseDelay,
	}
}

// onFailure advances the delay schedule and returns the jittered delay the
// caller should wait before retrying. The caller sleeps; this does not.
func (b *backoff) onFailure() time.Duration {
	b.failures++

	d := time.Duration(float64(b.base) * math.Pow(b.multiplier, float64(b.failures)))
	if d > b.max || d < 0 {
		d = b.max
	}
	b.current = d

	return jitter(d, 0.25)
}

func (b *backoff) onSuccess() {
	b.failures = 0
	b.current = b.base
}

func (b *backoff) currentDelay() time.Duration {
	return b.current
}

// jitter spreads d uniformly across [d*(1-frac), d*(1+frac)].
func jitter(d time.Duration, frac float64) time.Duration {
	if d <= 0 {
		return 0
	}
	spread := 1 - frac + 2*frac*rand.Float64()
	return time.Duration(float64(d) * spread)
}
