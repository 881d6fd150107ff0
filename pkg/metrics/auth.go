package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth_attempts_total.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthMetrics records authentication outcomes, rate-limit rejections and
// password hashing latency. A nil *AuthMetrics is a valid no-op recorder.
type AuthMetrics struct {
	attempts   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	hashing    *prometheus.HistogramVec
}

// NewAuthMetrics registers the auth metrics on the provided registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		return &AuthMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Authentication attempts by outcome and failure reason.",
	}, []string{"outcome", "reason"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests rejected by a rate limit policy.",
	}, []string{"policy"})
	hashing := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "password_hash_duration_seconds",
		Help:    "Wall time of argon2id hash and verify operations.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})
	reg.MustRegister(attempts, rejections, hashing)
	return &AuthMetrics{
		attempts:   attempts,
		rejections: rejections,
		hashing:    hashing,
	}
}

// IncAuthAttempt counts one attempt. reason is empty for successes.
func (m *AuthMetrics) IncAuthAttempt(outcome, reason string) {
	if m == nil || m.attempts == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome), reason).Inc()
}

// IncRateLimitRejection counts a rejected request for the named policy.
func (m *AuthMetrics) IncRateLimitRejection(policy string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(policy)).Inc()
}

// ObserveHashDuration records one argon2 computation.
func (m *AuthMetrics) ObserveHashDuration(op string, d time.Duration) {
	if m == nil || m.hashing == nil {
		return
	}
	m.hashing.WithLabelValues(normalizeLabel(op)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
