package output

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/emailauditor/auditkit/internal/apiclient"
	"github.com/emailauditor/auditkit/internal/audit"
	"github.com/emailauditor/auditkit/internal/format"
	"github.com/emailauditor/auditkit/internal/journal"
)

// Usage renders the daily quota summary.
func Usage(f Format, usage *apiclient.Usage) (string, error) {
	if usage == nil {
		return "", nil
	}
	if f == FormatJSON {
		return renderJSON(usage)
	}

	t := newWriter()
	t.AppendHeader(table.Row{"Tier", "Used Today", "Daily Limit", "Remaining"})
	t.AppendRow(table.Row{usage.SubscriptionTier, usage.TodayUsage, usage.DailyLimit, usage.Remaining})
	return render(t, f), nil
}

// Health renders the service health report.
func Health(f Format, report *apiclient.HealthReport) (string, error) {
	if report == nil {
		return "", nil
	}
	if f == FormatJSON {
		return renderJSON(report)
	}

	t := newWriter()
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"status", report.Status})
	if report.Version != "" {
		t.AppendRow(table.Row{"version", report.Version})
	}
	if report.Environment != "" {
		t.AppendRow(table.Row{"environment", report.Environment})
	}
	if report.Timestamp != "" {
		t.AppendRow(table.Row{"checked", format.DateString(report.Timestamp)})
	}
	if report.Error != "" {
		t.AppendRow(table.Row{"error", report.Error})
	}
	for _, key := range sortedKeys(report.Services) {
		t.AppendRow(table.Row{"service." + key, fmt.Sprint(report.Services[key])})
	}
	for _, key := range sortedKeys(report.Limits) {
		t.AppendRow(table.Row{"limit." + key, report.Limits[key]})
	}
	return render(t, f), nil
}

// AuditResults renders one row per audited file, followed by the rule
// breakdown when a single file was audited.
func AuditResults(f Format, results []*audit.Result) (string, error) {
	if f == FormatJSON {
		if results == nil {
			results = []*audit.Result{}
		}
		return renderJSON(results)
	}

	t := newWriter()
	t.AppendHeader(table.Row{"File", "Size", "Score", "Audited", "Notes"})
	var audited []*audit.Result
	for _, r := range results {
		if r == nil {
			continue
		}
		score := "-"
		if r.Report != nil {
			score = strconv.Itoa(r.Report.Score)
			audited = append(audited, r)
		}
		when := "-"
		if !r.AuditedAt.IsZero() {
			when = format.Date(r.AuditedAt)
		}
		t.AppendRow(table.Row{r.Path, format.FileSize(r.Size), score, when, resultNotes(r)})
	}

	rendered := render(t, f)
	if len(audited) == 1 {
		rendered += "\n\n" + render(rulesWriter(audited[0].Report), f)
		if summary := summaryText(audited[0].Report.Summary, f == FormatMarkdown); summary != "" {
			rendered += "\n\n" + summary
		}
	}
	return rendered, nil
}

// History renders journal entries.
func History(f Format, entries []journal.Entry) (string, error) {
	if f == FormatJSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return renderJSON(entries)
	}

	t := newWriter()
	t.AppendHeader(table.Row{"Audited", "File", "Size", "Score", "Digest"})
	for _, e := range entries {
		t.AppendRow(table.Row{format.Date(e.AuditedAt), e.FileName, format.FileSize(e.Size), e.Score, shortDigest(e.Digest)})
	}
	return render(t, f), nil
}

func rulesWriter(report *apiclient.AuditReport) table.Writer {
	t := newWriter()
	t.AppendHeader(table.Row{"Rule", "Result", "Description", "Justification"})
	for _, rule := range report.Rules {
		t.AppendRow(table.Row{string(rule.RuleID), ruleOutcome(rule), rule.Description, rule.Justification})
	}
	return t
}

func ruleOutcome(rule apiclient.RuleResult) string {
	switch {
	case rule.Passed != nil && *rule.Passed:
		return "pass"
	case rule.Passed != nil:
		return "fail"
	case rule.Score != nil:
		return strconv.FormatFloat(*rule.Score, 'f', -1, 64)
	default:
		return "-"
	}
}

func summaryText(summary apiclient.AuditSummary, markdown bool) string {
	var sb strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		if markdown {
			sb.WriteString("### " + title + "\n")
		} else {
			sb.WriteString(title + ":\n")
		}
		for _, item := range items {
			sb.WriteString("- " + item + "\n")
		}
	}
	section("Strengths", summary.Strengths)
	section("Improvements", summary.Improvements)
	return strings.TrimRight(sb.String(), "\n")
}

func resultNotes(r *audit.Result) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Cached:
		return "cached"
	default:
		return ""
	}
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func newWriter() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func render(t table.Writer, f Format) string {
	if f == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
