// Package report renders test results and per-scenario run comparisons as
// HTML, JSON or Markdown text.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

var (
	// ErrUnsupportedFormat is returned for declared formats with no renderer
	// (pdf, xml) and for unknown format names.
	ErrUnsupportedFormat = errors.New("report format not supported")
	ErrNoResult          = errors.New("test run has no result")
	ErrNoRuns            = errors.New("no finished test runs")
)

// Format selects the output representation.
type Format string

const (
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatXML      Format = "xml"
)

// MaxComparisonRows caps the per-run table in comparison reports.
const MaxComparisonRows = 10

// ParseFormat maps a query value to a Format. Empty means html; "md" is
// accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHTML, nil
	case "md":
		return FormatMarkdown, nil
	case FormatHTML, FormatJSON, FormatMarkdown, FormatPDF, FormatXML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType is the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

type resultView struct {
	TestRunID          string             `json:"test_run_id"`
	TestRunName        string             `json:"test_run_name"`
	Status             string             `json:"status,omitempty"`
	Passed             bool               `json:"passed"`
	CreatedAt          string             `json:"created_at"`
	ExecutionTimeMS    int64              `json:"execution_time_ms"`
	LogsCount          int                `json:"logs_count"`
	ErrorsCount        int                `json:"errors_count"`
	WarningsCount      int                `json:"warnings_count"`
	Logs               []string           `json:"logs"`
	Errors             []string           `json:"errors"`
	Warnings           []string           `json:"warnings"`
	PerformanceMetrics map[string]float64 `json:"performance_metrics"`
	Path               []string           `json:"path,omitempty"`
}

func newResultView(res *testrun.Result, run *testrun.Run) resultView {
	v := resultView{
		TestRunID:          res.RunID,
		TestRunName:        "Unknown",
		Passed:             res.Passed,
		CreatedAt:          "N/A",
		LogsCount:          len(res.Logs),
		ErrorsCount:        len(res.Errors),
		WarningsCount:      len(res.Warnings),
		Logs:               nonNil(res.Logs),
		Errors:             nonNil(res.Errors),
		Warnings:           nonNil(res.Warnings),
		PerformanceMetrics: res.Metrics,
	}
	if v.PerformanceMetrics == nil {
		v.PerformanceMetrics = map[string]float64{}
	}
	if !res.CreatedAt.IsZero() {
		v.CreatedAt = res.CreatedAt.Format(time.RFC3339)
	}
	if run != nil {
		v.TestRunName = run.Name
		v.Status = string(run.Status)
		v.ExecutionTimeMS = run.ExecutionTimeMS
		if v.TestRunID == "" {
			v.TestRunID = run.ID
		}
	}
	if res.Trace != nil {
		v.Path = res.Trace.Path
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Render formats a single run's result. run may be nil; its name and
// status are then omitted.
func Render(res *testrun.Result, run *testrun.Run, f Format) (string, error) {
	if res == nil {
		return "", ErrNoResult
	}
	v := newResultView(res, run)
	switch f {
	case FormatJSON:
		return encodeJSON(v)
	case FormatHTML:
		return execute(resultHTML, v)
	case FormatMarkdown:
		return resultMarkdown(v), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

func encodeJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return buf.String(), nil
}

func resultMarkdown(v resultView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Test report: %s\n\n", mdInline(v.TestRunName))
	fmt.Fprintf(&b, "**Created:** %s\n\n", v.CreatedAt)
	if v.Passed {
		b.WriteString("## Result: ✅ PASSED\n\n")
	} else {
		b.WriteString("## Result: ❌ FAILED\n\n")
	}
	b.WriteString("## Statistics\n")
	fmt.Fprintf(&b, "- Logs: %d\n", v.LogsCount)
	fmt.Fprintf(&b, "- Errors: %d\n", v.ErrorsCount)
	fmt.Fprintf(&b, "- Warnings: %d\n", v.WarningsCount)
	if v.ExecutionTimeMS > 0 {
		fmt.Fprintf(&b, "- Execution time: %d ms\n", v.ExecutionTimeMS)
	}
	if len(v.Path) > 0 {
		fmt.Fprintf(&b, "- Path: %s\n", mdInline(strings.Join(v.Path, " -> ")))
	}
	b.WriteString("\n## Execution log\n")
	for _, l := range v.Logs {
		fmt.Fprintf(&b, "- %s\n", mdInline(l))
	}
	if len(v.Errors) > 0 {
		b.WriteString("\n## Errors\n")
		for _, e := range v.Errors {
			fmt.Fprintf(&b, "- ❌ %s\n", mdInline(e))
		}
	}
	if len(v.Warnings) > 0 {
		b.WriteString("\n## Warnings\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", mdInline(w))
		}
	}
	return b.String()
}

// mdInline keeps user text on one line so it cannot open new blocks.
func mdInline(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.ReplaceAll(s, "|", `\|`)
}
