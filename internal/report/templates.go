package report

import (
	"bytes"
	"fmt"
	"html/template"
)

const style = `body { font-family: Arial, sans-serif; margin: 40px; }
.header { background: #f0f0f0; padding: 20px; border-radius: 5px; }
.result { padding: 15px; margin: 10px 0; border-radius: 5px; }
.passed { background: #d4edda; color: #155724; border: 1px solid #c3e6cb; }
.failed { background: #f8d7da; color: #721c24; border: 1px solid #f5c6cb; }
.logs { background: #e9ecef; padding: 15px; border-radius: 5px; margin-top: 20px; }
.error { color: #dc3545; font-weight: bold; }
table { width: 100%; border-collapse: collapse; margin-top: 20px; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
th { background-color: #f2f2f2; }`

var resultHTML = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Test report: {{.TestRunName}}</title>
<style>` + style + `</style>
</head>
<body>
<div class="header">
<h1>Test report: {{.TestRunName}}</h1>
<p>Created: {{.CreatedAt}}</p>
</div>
<div class="result {{if .Passed}}passed{{else}}failed{{end}}">
<h2>Result: {{if .Passed}}PASSED{{else}}FAILED{{end}}</h2>
</div>
<div>
<h3>Statistics</h3>
<p>Logs: {{.LogsCount}}</p>
<p>Errors: {{.ErrorsCount}}</p>
<p>Warnings: {{.WarningsCount}}</p>
{{- if .Path}}
<p>Path: {{range $i, $s := .Path}}{{if $i}} &rarr; {{end}}{{$s}}{{end}}</p>
{{- end}}
</div>
<div class="logs">
<h3>Execution log</h3>
<ul>
{{- range .Logs}}
<li>{{.}}</li>
{{- end}}
</ul>
</div>
{{- if .Errors}}
<div class="logs">
<h3>Errors</h3>
<ul>
{{- range .Errors}}
<li class="error">{{.}}</li>
{{- end}}
</ul>
</div>
{{- end}}
</body>
</html>
`))

var comparisonHTML = template.Must(template.New("comparison").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Comparison report: {{.ScenarioName}}</title>
<style>` + style + `</style>
</head>
<body>
<div class="header">
<h1>Comparison report: {{.ScenarioName}}</h1>
<p>Scenario ID: {{.ScenarioID}} | Total runs: {{.TotalTestRuns}}</p>
</div>
<div>
<p class="passed">Passed: {{.Passed}}</p>
<p class="failed">Failed: {{.Failed}}</p>
<p>Average execution time: {{printf "%.2f" .AvgExecutionMS}} ms</p>
</div>
<table>
<tr><th>Run</th><th>Status</th><th>Passed</th><th>Time (ms)</th><th>Created</th><th>Devices</th></tr>
{{- range .TestRuns}}
<tr><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Passed}}</td><td>{{.ExecutionTimeMS}}</td><td>{{.CreatedAt}}</td><td>{{.DevicesCount}}</td></tr>
{{- end}}
</table>
{{- if .TruncatedToRows}}
<p>Showing the first {{.TruncatedToRows}} runs.</p>
{{- end}}
</body>
</html>
`))

func execute(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
