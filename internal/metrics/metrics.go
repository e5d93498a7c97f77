// Package metrics records audit activity through the gofulmen telemetry
// system. Every function is a no-op until observability.InitMetrics runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/emailauditor/auditkit/internal/observability"
)

// Metric names
const (
	AuditsTotal     = "audits_total"
	AuditDuration   = "audit_duration_ms"
	APIErrorsTotal  = "api_errors_total"
	UsageRemaining  = "usage_remaining"
	UsageTodayTotal = "usage_today"
	WatchStartTime  = "watch_start_time_seconds"
)

// Audit outcomes
const (
	OutcomeAudited = "audited"
	OutcomeCached  = "cached"
	OutcomeFailed  = "failed"
)

// RecordAudit records one audited file and how long it took.
func RecordAudit(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		AuditsTotal,
		1,
		map[string]string{"outcome": outcome},
	)
	if outcome != OutcomeCached {
		_ = observability.TelemetrySystem.Histogram(
			AuditDuration,
			duration,
			map[string]string{"outcome": outcome},
		)
	}
}

// RecordAPIError records a failed API call by envelope code and HTTP status
// (0 when the request never got a response).
func RecordAPIError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		APIErrorsTotal,
		1,
		map[string]string{
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
		},
	)
}

// SetUsage publishes the latest quota snapshot.
func SetUsage(today, remaining int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(UsageTodayTotal, float64(today), nil)
	_ = observability.TelemetrySystem.Gauge(UsageRemaining, float64(remaining), nil)
}

// SetWatchStartTime records when the watch session began (Unix seconds).
func SetWatchStartTime(t time.Time) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(WatchStartTime, float64(t.Unix()), nil)
}
