package reportworker

import (
	"html/template"
	"io"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) string { return d.Round(time.Microsecond).String() },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Recording report: {{.Summary.Name}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.ok { color: #2a7a2a; } .warning { color: #b8860b; } .problem { color: #b22222; }
</style>
</head>
<body>
<h1>{{.Summary.Name}}</h1>
<p>Target: {{.TargetID}}<br>Events: {{.Summary.Events}}<br>Span: {{ms .Summary.Span}}</p>
<h2>Findings</h2>
<ul>
{{- range .Findings}}
<li class="{{.Severity}}"><strong>{{.Rule}}</strong>: {{.Message}}</li>
{{- end}}
</ul>
<h2>Event types</h2>
<table>
<tr><th>Type</th><th>Count</th><th>Total duration</th><th>Max duration</th></tr>
{{- range .Summary.Types}}
<tr><td>{{.Type}}</td><td>{{.Count}}</td><td>{{ms .TotalDuration}}</td><td>{{ms .MaxDuration}}</td></tr>
{{- end}}
</table>
</body>
</html>
`))

type reportView struct {
	TargetID string
	Summary  *Summary
	Findings []Finding
}

// Render writes the HTML report for a summarized recording.
func Render(w io.Writer, targetID string, s *Summary) error {
	return reportTemplate.Execute(w, reportView{
		TargetID: targetID,
		Summary:  s,
		Findings: Evaluate(s),
	})
}
