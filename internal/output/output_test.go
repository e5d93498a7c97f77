package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/audit"
	"github.com/emailauditor/auditkit/internal/journal"
)

func boolPtr(v bool) *bool { return &v }

func sampleReport() *apiclient.AuditReport {
	score := 0.5
	return &apiclient.AuditReport{
		Score: 7,
		Rules: []apiclient.RuleResult{
			{RuleID: "greeting", Description: "Uses a greeting", Passed: boolPtr(true)},
			{RuleID: "2", Description: "Signature | footer", Passed: boolPtr(false), Justification: "missing"},
			{RuleID: "tone", Description: "Tone", Score: &score},
		},
		Summary: apiclient.AuditSummary{
			Strengths:    []string{"Clear subject"},
			Improvements: []string{"Add a signature"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat(" md ")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestUsage(t *testing.T) {
	usage := &apiclient.Usage{TodayUsage: 3, DailyLimit: 10, Remaining: 7, SubscriptionTier: "free"}

	rendered, err := Usage(FormatTable, usage)
	require.NoError(t, err)
	require.Contains(t, rendered, "REMAINING")
	require.Contains(t, rendered, "free")

	rendered, err = Usage(FormatJSON, usage)
	require.NoError(t, err)
	require.Contains(t, rendered, "\"daily_limit\": 10")

	rendered, err = Usage(FormatTable, nil)
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestHealth(t *testing.T) {
	report := &apiclient.HealthReport{
		Status:    "unhealthy",
		Timestamp: "2024-03-05T14:07:00",
		Error:     "database is locked",
		Services:  map[string]any{"openai": "ok", "database": "error"},
		Limits:    map[string]int{"free": 10},
	}

	rendered, err := Health(FormatTable, report)
	require.NoError(t, err)
	require.Contains(t, rendered, "unhealthy")
	require.Contains(t, rendered, "March 5, 2024 at 02:07 PM")
	require.Contains(t, rendered, "database is locked")
	require.Contains(t, rendered, "limit.free")
	require.Less(t, strings.Index(rendered, "service.database"), strings.Index(rendered, "service.openai"))
}

func TestAuditResultsSingleFile(t *testing.T) {
	results := []*audit.Result{{
		Path:      "inbox/welcome.eml",
		Size:      1536,
		Report:    sampleReport(),
		AuditedAt: time.Date(2024, 1, 9, 9, 30, 0, 0, time.UTC),
	}}

	rendered, err := AuditResults(FormatTable, results)
	require.NoError(t, err)
	require.Contains(t, rendered, "inbox/welcome.eml")
	require.Contains(t, rendered, "1.5 KB")
	require.Contains(t, rendered, "January 9, 2024 at 09:30 AM")
	require.Contains(t, rendered, "pass")
	require.Contains(t, rendered, "fail")
	require.Contains(t, rendered, "0.5")
	require.Contains(t, rendered, "Strengths:")
	require.Contains(t, rendered, "- Add a signature")

	rendered, err = AuditResults(FormatMarkdown, results)
	require.NoError(t, err)
	require.Contains(t, rendered, "| inbox/welcome.eml |")
	require.Contains(t, rendered, "### Improvements")
	require.Contains(t, rendered, `Signature \| footer`)
}

func TestAuditResultsMultipleFiles(t *testing.T) {
	results := []*audit.Result{
		{Path: "a.eml", Size: 10, Report: sampleReport(), Cached: true},
		nil,
		{Path: "b.eml", Size: 20, Report: sampleReport()},
	}

	rendered, err := AuditResults(FormatTable, results)
	require.NoError(t, err)
	require.Contains(t, rendered, "cached")
	require.NotContains(t, rendered, "Strengths:")
}

func TestAuditResultsJSON(t *testing.T) {
	rendered, err := AuditResults(FormatJSON, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)

	rendered, err = AuditResults(FormatJSON, []*audit.Result{{Path: "a.eml", Report: sampleReport()}})
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rendered), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "a.eml", decoded[0]["path"])
}

func TestHistory(t *testing.T) {
	entries := []journal.Entry{{
		Digest:    "0123456789abcdef0123",
		FileName:  "welcome.eml",
		Size:      2048,
		Score:     8,
		AuditedAt: time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC),
	}}

	rendered, err := History(FormatTable, entries)
	require.NoError(t, err)
	require.Contains(t, rendered, "welcome.eml")
	require.Contains(t, rendered, "2 KB")
	require.Contains(t, rendered, "0123456789ab")
	require.NotContains(t, rendered, "0123456789abcdef0123")

	rendered, err = History(FormatJSON, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", rendered)
}
