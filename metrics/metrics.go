// Package metrics defines the Prometheus collectors for the portal gateway.
// Collectors register with the default registry on import and are served on
// /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "testrelay_portal"

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var sessionStates = []string{"UNRESOLVED", "NO_SESSION", "RESOLVING_CLAIMS", "RESOLVED"}

var (
	// ProvisioningCallsTotal counts claims provisioner calls by result.
	ProvisioningCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "provisioning_calls_total",
			Help:      "Total number of claims provisioning calls by result",
		},
		[]string{"result"},
	)

	// TokenRefreshesTotal counts forced token re-issues by result.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "token_refreshes_total",
			Help:      "Total number of forced token refreshes by result",
		},
		[]string{"result"},
	)

	// SessionState is 1 for the current session state and 0 otherwise.
	SessionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state",
		},
		[]string{"state"},
	)

	// LinkRetriesTotal counts requests resubmitted after an expired token.
	LinkRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "retries_total",
			Help:      "Total number of requests retried after token expiry",
		},
	)

	// TerminalAuthFailuresTotal counts requests that expired again after a retry.
	TerminalAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "terminal_auth_failures_total",
			Help:      "Total number of requests that failed authentication after refresh",
		},
	)

	// HTTPRequestDurationSeconds measures gateway request latency.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// WorkerJobRunsTotal counts background job executions by job and status.
	WorkerJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_runs_total",
			Help:      "Total number of background job runs by job and status",
		},
		[]string{"job", "status"},
	)
)

// RecordProvisioning records a claims provisioner call.
func RecordProvisioning(result string) {
	ProvisioningCallsTotal.WithLabelValues(result).Inc()
}

// RecordTokenRefresh records a forced token refresh.
func RecordTokenRefresh(result string) {
	TokenRefreshesTotal.WithLabelValues(result).Inc()
}

// SetSessionState marks state as the current session state.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		SessionState.WithLabelValues(s).Set(value)
	}
}

// RecordLinkRetry records a request resubmitted with a refreshed token.
func RecordLinkRetry() {
	LinkRetriesTotal.Inc()
}

// RecordTerminalAuthFailure records a request that expired twice.
func RecordTerminalAuthFailure() {
	TerminalAuthFailuresTotal.Inc()
}

// RecordWorkerJob records a background job run.
func RecordWorkerJob(job, status string) {
	WorkerJobRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveHTTPRequest records the latency of a handled request.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDurationSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
