package exporter

import (
	"bufio"
	"html/template"
	"io"
	"time"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body {font:9pt Arial,Helvetica,sans-serif; color:black; background:#C0C0C0;}
.report {background:white; padding:10px;}
h1 {font:bold 14pt Arial,Helvetica,sans-serif; color:#336699; border-bottom:1px solid #cccc99; padding:10px 0; text-align:center;}
.section-title {font:bold 10pt Arial,Helvetica,sans-serif; color:white; background:#0066CC; margin:15px 0 5px 0; padding:5px;}
.summary div {margin:5px 0;}
table {width:100%; border-collapse:collapse;}
th {font:bold 9pt Arial,Helvetica,sans-serif; color:white; background:#0066CC; border:1px solid #0066CC; padding:2px;}
td {background:#FFFFCC; border:1px solid #0066CC; padding:2px;}
.footer {font:8pt Arial,Helvetica,sans-serif; color:#666666; text-align:center; margin-top:20px; padding-top:5px; border-top:1px solid #cccc99;}
</style>
</head>
<body>
<div class="report">
<h1>{{.Title}}</h1>
<div class="summary">
<div><b>Generated at:</b> {{.Generated}}</div>
<div><b>Rows:</b> {{len .Rows}}</div>
<div><b>Columns:</b> {{len .Columns}}</div>
</div>
<div class="section-title">Results</div>
<table>
{{- if .Columns}}
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
{{- end}}
<tbody>
{{- range .Rows}}
<tr>{{range .}}{{if .Null}}<td>&nbsp;</td>{{else}}<td>{{.Text}}</td>{{end}}{{end}}</tr>
{{- end}}
</tbody>
</table>
<div class="footer">Generated by SQL Console | {{.Generated}}</div>
</div>
</body>
</html>
`))

type htmlCell struct {
	Text string
	Null bool
}

type htmlReport struct {
	Title     string
	Generated string
	Columns   []string
	Rows      [][]htmlCell
}

// HTMLEncoder renders a report page with a summary and the full table.
// The summary needs the row count, so rows are collected until Flush.
type HTMLEncoder struct {
	w       io.Writer
	report  htmlReport
	headers bool
	done    bool
	err     error
}

func NewHTMLEncoder(w io.Writer, opts Options) *HTMLEncoder {
	title := opts.Title
	if title == "" {
		title = "SQL Query Report"
	}
	return &HTMLEncoder{
		w:       w,
		headers: opts.IncludeHeader,
		report: htmlReport{
			Title:     title,
			Generated: time.Now().Format("2006-01-02 15:04:05"),
		},
	}
}

func (e *HTMLEncoder) WriteHeader(columns []string) error {
	if e.headers {
		e.report.Columns = columns
	}
	return nil
}

func (e *HTMLEncoder) WriteRow(values []any) error {
	row := make([]htmlCell, len(values))
	for i, v := range values {
		row[i] = htmlCell{Text: cellText(v), Null: v == nil}
	}
	e.report.Rows = append(e.report.Rows, row)
	return nil
}

func (e *HTMLEncoder) Flush() error {
	if e.done || e.err != nil {
		return e.err
	}
	e.done = true
	buf := bufio.NewWriterSize(e.w, 64*1024)
	if err := reportTemplate.Execute(buf, e.report); err != nil {
		e.err = err
		return err
	}
	e.err = buf.Flush()
	return e.err
}

func (e *HTMLEncoder) Error() error {
	return e.err
}

func (e *HTMLEncoder) Close() error {
	return e.Flush()
}
