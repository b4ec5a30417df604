// Package metrics exposes Prometheus collectors for the API.
//
// Collectors are registered on the default registry through promauto, so
// promhttp.Handler() at /metrics serves them with no further wiring.
//
// Usage:
//
//	metrics.RecordHTTPRequest("POST", "/location/update", 200, 12*time.Millisecond)
//	metrics.RecordLocationUpdate("move")
//	metrics.RecordAuthAttempt("login", "failure")
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "teamterrain"

var (
	// HTTPRequestsTotal counts requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency by method and route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LocationUpdatesTotal counts accepted location changes by action.
	LocationUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_updates_total",
			Help:      "Total number of accepted location changes",
		},
		[]string{"action"},
	)

	// AuthorizationDeniedTotal counts location changes refused by policy.
	AuthorizationDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_denied_total",
			Help:      "Total number of mutations refused by the permission policy",
		},
		[]string{"action"},
	)

	// AuthAttemptsTotal counts credential checks by kind and outcome.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of authentication attempts",
		},
		[]string{"kind", "outcome"},
	)
)

// RecordHTTPRequest records one completed request. route should be the
// router pattern ("/users/{id}"), not the raw path, to keep cardinality low.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordLocationUpdate records an accepted pin, move or delete.
func RecordLocationUpdate(action string) {
	LocationUpdatesTotal.WithLabelValues(action).Inc()
}

// RecordAuthorizationDenied records a policy refusal.
func RecordAuthorizationDenied(action string) {
	AuthorizationDeniedTotal.WithLabelValues(action).Inc()
}

// RecordAuthAttempt records a credential check. kind is "bearer", "login"
// or "register"; outcome is "success", "failure", "invalid" (rejected
// input), "conflict" (email taken) or "denied" (reserved admin email).
func RecordAuthAttempt(kind, outcome string) {
	AuthAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}
