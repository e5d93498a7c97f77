package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emailauditor/auditkit/internal/observability"
)

func TestRecordersAreNoopsWithoutTelemetry(t *testing.T) {
	require.Nil(t, observability.TelemetrySystem)

	require.NotPanics(t, func() {
		RecordAudit(OutcomeAudited, time.Second)
		RecordAudit(OutcomeCached, 0)
		RecordAPIError("RATE_LIMITED", 429)
		SetUsage(3, 7)
		SetWatchStartTime(time.Now())
	})
}
