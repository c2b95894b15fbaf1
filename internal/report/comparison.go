package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

type comparisonRow struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	CreatedAt       string `json:"created_at"`
	Tester          string `json:"tester,omitempty"`
	DevicesCount    int    `json:"devices_count"`
}

type comparisonView struct {
	ScenarioID      string          `json:"scenario_id"`
	ScenarioName    string          `json:"scenario_name"`
	TotalTestRuns   int             `json:"total_test_runs"`
	Passed          int             `json:"passed"`
	Failed          int             `json:"failed"`
	AvgExecutionMS  float64         `json:"average_execution_time_ms"`
	TestRuns        []comparisonRow `json:"test_runs"`
	TruncatedToRows int             `json:"truncated_to,omitempty"`
}

// RenderComparison summarises the finished runs of one scenario. Runs still
// pending or running are ignored; ErrNoRuns is returned when none remain.
// Passed and failed count runs by their result, and the average covers runs
// with a positive execution time. Only the first MaxComparisonRows runs are
// listed.
func RenderComparison(scenarioName string, runs []*testrun.Run, f Format) (string, error) {
	switch f {
	case FormatJSON, FormatHTML, FormatMarkdown:
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	v := buildComparison(scenarioName, runs)
	if v.TotalTestRuns == 0 {
		return "", ErrNoRuns
	}
	switch f {
	case FormatJSON:
		return encodeJSON(v)
	case FormatHTML:
		return execute(comparisonHTML, v)
	}
	return comparisonMarkdown(v), nil
}

func buildComparison(name string, runs []*testrun.Run) comparisonView {
	if name == "" {
		name = "Unknown"
	}
	v := comparisonView{ScenarioName: name, TestRuns: []comparisonRow{}}
	var timed int
	var total int64
	for _, r := range runs {
		if r == nil || !r.Status.Terminal() {
			continue
		}
		if v.ScenarioID == "" {
			v.ScenarioID = r.ScenarioID
		}
		v.TotalTestRuns++
		passed := r.Result != nil && r.Result.Passed
		if r.Result != nil {
			if passed {
				v.Passed++
			} else {
				v.Failed++
			}
		}
		if r.ExecutionTimeMS > 0 {
			timed++
			total += r.ExecutionTimeMS
		}
		if len(v.TestRuns) < MaxComparisonRows {
			v.TestRuns = append(v.TestRuns, comparisonRow{
				ID:              r.ID,
				Name:            r.Name,
				Status:          string(r.Status),
				Passed:          passed,
				ExecutionTimeMS: r.ExecutionTimeMS,
				CreatedAt:       r.CreatedAt.Format(time.RFC3339),
				Tester:          r.TesterID,
				DevicesCount:    len(r.DeviceIDs),
			})
		}
	}
	if timed > 0 {
		v.AvgExecutionMS = float64(total) / float64(timed)
	}
	if v.TotalTestRuns > MaxComparisonRows {
		v.TruncatedToRows = MaxComparisonRows
	}
	return v
}

func comparisonMarkdown(v comparisonView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Comparison report: %s\n\n", mdInline(v.ScenarioName))
	fmt.Fprintf(&b, "Scenario ID: %s | Total runs: %d\n\n", v.ScenarioID, v.TotalTestRuns)
	fmt.Fprintf(&b, "- Passed: %d\n- Failed: %d\n- Average execution time: %.2f ms\n\n", v.Passed, v.Failed, v.AvgExecutionMS)
	b.WriteString("| Run | Status | Passed | Time (ms) | Devices |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, r := range v.TestRuns {
		fmt.Fprintf(&b, "| %s | %s | %t | %d | %d |\n", mdInline(r.Name), r.Status, r.Passed, r.ExecutionTimeMS, r.DevicesCount)
	}
	if v.TruncatedToRows > 0 {
		fmt.Fprintf(&b, "\nShowing the first %d runs.\n", v.TruncatedToRows)
	}
	return b.String()
}
