package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propertyhub_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_auth_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	dbSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_db_sessions_total",
		Help: "Finished database sessions by outcome",
	}, []string{"outcome"})

	usersByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "propertyhub_users_by_status",
		Help: "Number of accounts in each status",
	}, []string{"status"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	}, []string{"route"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_circuit_breaker_transitions_total",
		Help: "Circuit breaker state changes",
	}, []string{"name", "to"})
)

// Login attempt results.
const (
	AuthSuccess            = "success"
	AuthInvalidCredentials = "invalid_credentials"
	AuthInactive           = "inactive"
	AuthLockedOut          = "locked_out"
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveAuthAttempt counts a login attempt.
func ObserveAuthAttempt(result string) {
	authAttempts.WithLabelValues(result).Inc()
}

// ObserveSession counts a finished database session. It matches the pool's
// outcome observer signature.
func ObserveSession(outcome string) {
	dbSessions.WithLabelValues(outcome).Inc()
}

// SetUsersByStatus replaces the per-status account gauge.
func SetUsersByStatus(counts map[string]int) {
	usersByStatus.Reset()
	for status, n := range counts {
		if n < 0 {
			n = 0
		}
		usersByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// ObserveRateLimited counts a rejected request.
func ObserveRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

// ObserveBreakerTransition counts a circuit breaker state change.
func ObserveBreakerTransition(name, to string) {
	breakerTransitions.WithLabelValues(name, to).Inc()
}
