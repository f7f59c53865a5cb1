package governor

import (
	"fmt"
	"time"
)

type ProxyStatus string

const (
	ProxyStatusActive   ProxyStatus = "active"
	ProxyStatusFailed   ProxyStatus = "failed"
	ProxyStatusBanned   ProxyStatus = "banned"
	ProxyStatusRotating ProxyStatus = "rotating"
)

// Proxy is one outbound endpoint. Proxies are created once at startup and
// mutated in place by request outcomes; they are never removed from the pool.
// All fields are guarded by the owning Pool's lock.
type Proxy struct {
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Status        ProxyStatus   `json:"status"`
	FailureCount  int           `json:"failure_count"`
	SuccessCount  int           `json:"success_count"`
	LastUsed      time.Time     `json:"last_used"`
	BanDetectedAt time.Time     `json:"ban_detected_at"`
	ResponseTime  time.Duration `json:"response_time"`
}

// URL renders the proxy endpoint for use in an http.Transport.
func (p *Proxy) URL() string {
	if p.Username != "" && p.Password != "" {
		return fmt.Sprintf("http://%s:%s@%s:%d", p.Username, p.Password, p.Host, p.Port)
	}
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

func (p *Proxy) markSuccess(now time.Time, responseTime time.Duration) {
	p.Status = ProxyStatusActive
	p.LastUsed = now
	p.SuccessCount++
	p.ResponseTime = responseTime
	p.FailureCount = 0
}

// markFailure settles a rotating proxy after a non-ban error. Below the
// failure threshold the proxy goes straight back into rotation.
func (p *Proxy) markFailure(now time.Time, maxFailures int) {
	p.FailureCount++
	p.LastUsed = now
	if p.FailureCount >= maxFailures {
		p.Status = ProxyStatusFailed
		return
	}
	p.Status = ProxyStatusActive
}

func (p *Proxy) markBanned(now time.Time) {
	p.Status = ProxyStatusBanned
	p.BanDetectedAt = now
	p.FailureCount++
	p.LastUsed = now
}

// selectionWeight favors proxies with a positive success record. Every
// eligible proxy keeps a floor weight of 1 so newcomers still get traffic.
func (p *Proxy) selectionWeight() int {
	w := p.SuccessCount - p.FailureCount
	if w < 1 {
		return 1
	}
	return w
}
