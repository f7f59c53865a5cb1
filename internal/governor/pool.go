package governor

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
	"github.com/fraudshield/arbitrage-mediamrkt/pkg/models"
)

// Pool owns a fixed set of proxies and hands them out for scrape requests.
// Selection is weighted random over available proxies, outcomes feed back
// through ReportOutcome. A single lock guards the whole pool; all operations
// are short and never block on I/O.
type Pool struct {
	mu      sync.Mutex
	proxies []*Proxy
	cfg     config.ProxyPoolConfig
	rng     *rand.Rand
	logger  *logrus.Logger
	now     func() time.Time
}

func NewPool(cfg config.ProxyPoolConfig, log *logrus.Logger) *Pool {
	proxies := make([]*Proxy, 0, len(cfg.Proxies))
	for _, pc := range cfg.Proxies {
		proxies = append(proxies, &Proxy{
			Host:     pc.Host,
			Port:     pc.Port,
			Username: pc.Username,
			Password: pc.Password,
			Status:   ProxyStatusActive,
		})
	}

	return &Pool{
		proxies: proxies,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  log,
		now:     time.Now,
	}
}

// Next picks an available proxy by weighted random selection and marks it
// rotating until its outcome is reported. Returns ErrNoProxyAvailable when
// every proxy is rotating, failed within cooldown, or banned within cooldown.
func (pl *Pool) Next() (*Proxy, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	pl.resetCooledDown(now)

	var (
		candidates []*Proxy
		total      int
	)
	for _, p := range pl.proxies {
		if pl.available(p, now) {
			candidates = append(candidates, p)
			total += p.selectionWeight()
		}
	}
	if len(candidates) == 0 {
		recordProxyExhausted()
		return nil, models.ErrNoProxyAvailable
	}

	pick := pl.rng.Intn(total)
	for _, p := range candidates {
		pick -= p.selectionWeight()
		if pick < 0 {
			p.Status = ProxyStatusRotating
			p.LastUsed = now
			recordProxySelection(p.Host)
			return p, nil
		}
	}
	// Unreachable: weights sum to total.
	return nil, models.ErrNoProxyAvailable
}

// ReportOutcome settles a proxy handed out by Next. A nil err counts as a
// success and clears the failure streak. An error whose text contains a ban
// indicator bans the proxy immediately, regardless of its failure count.
func (pl *Pool) ReportOutcome(p *Proxy, responseTime time.Duration, err error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()

	if err == nil {
		p.markSuccess(now, responseTime)
		return
	}

	if pl.isBanError(err) {
		p.markBanned(now)
		recordProxyBan(p.Host)
		pl.logger.WithFields(logrus.Fields{
			"proxy": p.Host,
			"error": err.Error(),
		}).Warn("Proxy banned by target")
		return
	}

	p.markFailure(now, pl.cfg.MaxFailures)
	recordProxyFailure(p.Host)
	if p.Status == ProxyStatusFailed {
		pl.logger.WithFields(logrus.Fields{
			"proxy":    p.Host,
			"failures": p.FailureCount,
		}).Warn("Proxy marked failed")
	}
}

// IsAvailable reports whether the proxy would be considered for selection
// right now.
func (pl *Pool) IsAvailable(p *Proxy) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	pl.resetCooledDown(now)
	return pl.available(p, now)
}

func (pl *Pool) available(p *Proxy, now time.Time) bool {
	switch p.Status {
	case ProxyStatusActive:
		return true
	case ProxyStatusBanned:
		return !p.BanDetectedAt.IsZero() && now.Sub(p.BanDetectedAt) >= pl.cfg.BanCooldown
	default:
		// Rotating proxies are in flight, failed proxies wait for
		// resetCooledDown to restore them.
		return false
	}
}

// resetCooledDown restores failed proxies that sat out their cooldown. Banned
// proxies keep their status; available() lets them through once the ban
// cooldown elapses, and from there the next reported outcome settles them
// like any other proxy.
func (pl *Pool) resetCooledDown(now time.Time) {
	for _, p := range pl.proxies {
		if p.Status == ProxyStatusFailed && now.Sub(p.LastUsed) >= pl.cfg.FailedCooldown {
			p.Status = ProxyStatusActive
			p.FailureCount = 0
		}
	}
}

func (pl *Pool) isBanError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range pl.cfg.BanIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// PoolStats is a point-in-time snapshot for logging and the stats endpoint.
type PoolStats struct {
	Total           int           `json:"total"`
	Active          int           `json:"active"`
	Rotating        int           `json:"rotating"`
	Failed          int           `json:"failed"`
	Banned          int           `json:"banned"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

func (pl *Pool) Stats() PoolStats {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	stats := PoolStats{Total: len(pl.proxies)}
	var (
		totalRT time.Duration
		withRT  int
	)
	for _, p := range pl.proxies {
		switch p.Status {
		case ProxyStatusActive:
			stats.Active++
		case ProxyStatusRotating:
			stats.Rotating++
		case ProxyStatusFailed:
			stats.Failed++
		case ProxyStatusBanned:
			stats.Banned++
		}
		if p.ResponseTime > 0 {
			totalRT += p.ResponseTime
			withRT++
		}
	}
	if withRT > 0 {
		stats.AvgResponseTime = totalRT / time.Duration(withRT)
	}

	setProxyPoolGauges(stats.Active, stats.Banned, stats.Failed)
	return stats
}

// probeTargets returns the proxies the health checker should exercise.
// Rotating proxies are in the middle of a real request and banned proxies sit
// out their cooldown regardless of probe results, so both are skipped.
func (pl *Pool) probeTargets() []*Proxy {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	var out []*Proxy
	for _, p := range pl.proxies {
		if p.Status == ProxyStatusActive || p.Status == ProxyStatusFailed {
			out = append(out, p)
		}
	}
	return out
}
