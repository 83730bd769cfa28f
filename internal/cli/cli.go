// Package cli renders load test results, run history and the metric glossary
// for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/k6ui/internal/glossary"
	"github.com/studiowebux/k6ui/internal/history"
	"github.com/studiowebux/k6ui/internal/loadtest"
	"github.com/studiowebux/k6ui/internal/summary"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted values of --output.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// isInteractive checks if the file is a terminal (not piped)
func isInteractive(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// IsInteractive reports whether both stdin and stderr are terminals.
func IsInteractive() bool {
	return isInteractive(os.Stdin) && isInteractive(os.Stderr)
}

// FormatResult formats a load test result.
func FormatResult(result *loadtest.Result, format string) (string, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(result)
	case FormatYAML:
		return marshalYAML(result)
	}

	var sb strings.Builder
	sb.WriteString(successStyle.Render("Load test completed"))
	if result.RunID > 0 {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf(" (run #%d)", result.RunID)))
	}
	sb.WriteString("\n\n")

	if result.Metrics.Empty() {
		sb.WriteString(mutedStyle.Render("No metrics found in the k6 summary."))
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(result.Summary))
		sb.WriteString("\n")
		return sb.String(), nil
	}

	sb.WriteString(MetricsTable(result.Metrics))
	sb.WriteString("\n")
	return sb.String(), nil
}

// MetricsTable renders extracted metrics as a two column table.
func MetricsTable(m summary.Metrics) string {
	rows := metricRows(m)
	return newTable("Metric", "Value").Rows(rows...).String()
}

func metricRows(m summary.Metrics) [][]string {
	var rows [][]string

	if m.HTTPReqs != nil {
		rows = append(rows, []string{"http_reqs", strconv.Itoa(*m.HTTPReqs)})
	}
	if d := m.HTTPReqDuration; d != nil {
		rows = append(rows,
			[]string{"http_req_duration avg", formatMillis(d.Avg)},
			[]string{"http_req_duration min", formatMillis(d.Min)},
			[]string{"http_req_duration med", formatMillis(d.Med)},
			[]string{"http_req_duration max", formatMillis(d.Max)},
			[]string{"http_req_duration p95", formatMillis(d.P95)},
		)
	}
	if m.HTTPReqFailed != nil {
		rows = append(rows, []string{"http_req_failed", formatPercent(*m.HTTPReqFailed)})
	}
	if m.IterationDuration != nil {
		rows = append(rows, []string{"iteration_duration avg", formatMillis(m.IterationDuration.Avg)})
	}
	if m.VUs != nil {
		rows = append(rows, []string{"vus", strconv.Itoa(*m.VUs)})
	}
	if m.VUsMax != nil {
		rows = append(rows, []string{"vus_max", strconv.Itoa(*m.VUsMax)})
	}

	return rows
}

// FormatRuns formats a list of recorded runs.
func FormatRuns(runs []*history.Run, format string) (string, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(runs)
	case FormatYAML:
		return marshalYAML(runs)
	}

	if len(runs) == 0 {
		return mutedStyle.Render("No runs recorded yet.") + "\n", nil
	}

	t := newTable("ID", "Started", "Status", "Method", "Target", "VUs", "Duration", "Reqs", "p95")
	for _, r := range runs {
		reqs, p95 := "-", "-"
		if r.Metrics.HTTPReqs != nil {
			reqs = strconv.Itoa(*r.Metrics.HTTPReqs)
		}
		if r.Metrics.HTTPReqDuration != nil {
			p95 = formatMillis(r.Metrics.HTTPReqDuration.P95)
		}
		t.Row(
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			statusStyle(r.Status).Render(string(r.Status)),
			r.Config.Method,
			r.Config.TargetURL,
			strconv.Itoa(r.Config.VirtualUsers),
			r.Config.Duration,
			reqs,
			p95,
		)
	}

	return t.String() + "\n", nil
}

// FormatRun formats one recorded run. showFull adds the script and the raw
// k6 output.
func FormatRun(run *history.Run, format string, showFull bool) (string, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(run)
	case FormatYAML:
		return marshalYAML(run)
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Run #%d", run.ID)))
	sb.WriteString(" ")
	sb.WriteString(statusStyle(run.Status).Render(string(run.Status)))
	sb.WriteString("\n\n")

	field := func(name, value string) {
		if value == "" {
			return
		}
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("%-12s", name)))
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	field("Started", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		field("Completed", run.CompletedAt.Format(time.RFC3339))
	}
	field("Elapsed", run.Elapsed().String())
	field("Target", run.Config.Method+" "+run.Config.TargetURL)
	field("Call type", string(run.Config.CallType))
	field("VUs", strconv.Itoa(run.Config.VirtualUsers))
	field("Duration", run.Config.Duration)
	field("Ramp-up", run.Config.RampUp)
	field("Headers", run.Config.Headers)
	field("Body", run.Config.Body)
	field("k6", run.Binary)
	if run.ExitCode != nil {
		field("Exit code", strconv.Itoa(*run.ExitCode))
	}

	if !run.Metrics.Empty() {
		sb.WriteString("\n")
		sb.WriteString(MetricsTable(run.Metrics))
		sb.WriteString("\n")
	}

	if run.Error != "" {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: " + run.Error))
		sb.WriteString("\n")
	}

	if showFull {
		if run.Script != "" {
			sb.WriteString("\n")
			sb.WriteString(titleStyle.Render("Script"))
			sb.WriteString("\n")
			sb.WriteString(run.Script)
			sb.WriteString("\n")
		}
		if run.RawOutput != "" {
			sb.WriteString("\n")
			sb.WriteString(titleStyle.Render("k6 output"))
			sb.WriteString("\n")
			sb.WriteString(run.RawOutput)
			if !strings.HasSuffix(run.RawOutput, "\n") {
				sb.WriteString("\n")
			}
		}
	}

	return sb.String(), nil
}

// FormatGlossary formats glossary entries.
func FormatGlossary(entries []glossary.Entry, format string) (string, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(entries)
	case FormatYAML:
		return marshalYAML(entries)
	}

	if len(entries) == 0 {
		return mutedStyle.Render("No matching metric.") + "\n", nil
	}

	desc := lipgloss.NewStyle().PaddingLeft(2).Width(80)

	var sb strings.Builder
	for i, e := range entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(titleStyle.Render(e.Name))
		sb.WriteString(mutedStyle.Render(" - " + e.Title))
		sb.WriteString("\n")
		sb.WriteString(desc.Render(e.Description))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func statusStyle(status history.Status) lipgloss.Style {
	switch status {
	case history.StatusCompleted:
		return successStyle
	case history.StatusFailed:
		return errorStyle
	default:
		return warningStyle
	}
}

func formatMillis(ms float64) string {
	switch {
	case ms >= 1000:
		return strconv.FormatFloat(ms/1000, 'f', 2, 64) + "s"
	case ms > 0 && ms < 1:
		return strconv.FormatFloat(ms*1000, 'f', 2, 64) + "µs"
	default:
		return strconv.FormatFloat(ms, 'f', 2, 64) + "ms"
	}
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64) + "%"
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func marshalYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
