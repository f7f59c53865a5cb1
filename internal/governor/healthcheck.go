package governor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fraudshield/arbitrage-mediamrkt/pkg/config"
)

// HealthChecker periodically probes pool proxies against a known-good URL so
// that dead endpoints get demoted before real scrape traffic hits them. Probe
// outcomes flow through the same ReportOutcome path as real requests.
type HealthChecker struct {
	pool     *Pool
	cfg      config.ProxyPoolConfig
	logger   *logrus.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewHealthChecker(pool *Pool, cfg config.ProxyPoolConfig, log *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		pool:     pool,
		cfg:      cfg,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

func (hc *HealthChecker) Start() {
	hc.wg.Add(1)
	go hc.run()

	hc.logger.WithField("interval", hc.cfg.HealthCheckInterval).Info("Proxy health checker started")
}

func (hc *HealthChecker) Stop() {
	close(hc.stopChan)
	hc.wg.Wait()

	hc.logger.Info("Proxy health checker stopped")
}

func (hc *HealthChecker) run() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-hc.stopChan:
			return
		case <-ticker.C:
			hc.checkAll()
		}
	}
}

// checkAll probes every eligible proxy, at most 10 concurrently.
func (hc *HealthChecker) checkAll() {
	targets := hc.pool.probeTargets()
	if len(targets) == 0 {
		return
	}

	sem := make(chan struct{}, 10)
	var wg sync.WaitGroup

	for _, p := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *Proxy) {
			defer wg.Done()
			defer func() { <-sem }()
			hc.probe(p)
		}(p)
	}
	wg.Wait()

	stats := hc.pool.Stats()
	hc.logger.WithFields(logrus.Fields{
		"checked": len(targets),
		"active":  stats.Active,
		"failed":  stats.Failed,
		"banned":  stats.Banned,
	}).Debug("Proxy health check round complete")
}

func (hc *HealthChecker) probe(p *Proxy) {
	ctx, cancel := context.WithTimeout(context.Background(), hc.cfg.HealthCheckTimeout)
	defer cancel()

	elapsed, err := hc.probeOnce(ctx, p)
	hc.pool.ReportOutcome(p, elapsed, err)
	recordHealthCheck(err == nil)
}

func (hc *HealthChecker) probeOnce(ctx context.Context, p *Proxy) (time.Duration, error) {
	proxyURL, err := url.Parse(p.URL())
	if err != nil {
		return 0, fmt.Errorf("invalid proxy url: %w", err)
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
		Timeout: hc.cfg.HealthCheckTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.cfg.HealthCheckURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return elapsed, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return elapsed, nil
}
