package governor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_selections_total",
			Help: "Total number of proxy selections",
		},
		[]string{"proxy"},
	)

	proxyBansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_bans_total",
			Help: "Total number of proxies banned by targets",
		},
		[]string{"proxy"},
	)

	proxyFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_failures_total",
			Help: "Total number of failed proxy requests",
		},
		[]string{"proxy"},
	)

	proxyExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proxy_pool_exhausted_total",
			Help: "Total number of selections with no proxy available",
		},
	)

	proxyHealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_health_checks_total",
			Help: "Total number of proxy health checks",
		},
		[]string{"status"},
	)

	activeProxiesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_proxies_count",
			Help: "Current number of active proxies",
		},
	)

	bannedProxiesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "banned_proxies_count",
			Help: "Current number of banned proxies",
		},
	)

	failedProxiesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "failed_proxies_count",
			Help: "Current number of failed proxies",
		},
	)

	rateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate limit slot",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"domain"},
	)

	rateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total number of rate limit responses from targets",
		},
		[]string{"domain"},
	)

	backoffDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoff_delay_seconds",
			Help:    "Backoff delays issued after request failures",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"domain"},
	)
)

func recordProxySelection(proxy string) {
	proxySelectionsTotal.WithLabelValues(proxy).Inc()
}

func recordProxyBan(proxy string) {
	proxyBansTotal.WithLabelValues(proxy).Inc()
}

func recordProxyFailure(proxy string) {
	proxyFailuresTotal.WithLabelValues(proxy).Inc()
}

func recordProxyExhausted() {
	proxyExhaustedTotal.Inc()
}

func recordHealthCheck(ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	proxyHealthChecksTotal.WithLabelValues(status).Inc()
}

func setProxyPoolGauges(active, banned, failed int) {
	activeProxiesCount.Set(float64(active))
	bannedProxiesCount.Set(float64(banned))
	failedProxiesCount.Set(float64(failed))
}

func recordRateLimitWait(domain string, waited time.Duration) {
	rateLimitWaitSeconds.WithLabelValues(domain).Observe(waited.Seconds())
}

func recordRateLimitHit(domain string) {
	rateLimitHitsTotal.WithLabelValues(domain).Inc()
}

func recordBackoffDelay(domain string, delay time.Duration) {
	backoffDelaySeconds.WithLabelValues(domain).Observe(delay.Seconds())
}
