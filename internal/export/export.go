// Package export writes tabular records as CSV, SpreadsheetML (.xls), JSON
// or print-ready HTML, with French formatting of amounts, dates and
// percentages and a record-count summary.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

type Format string

const (
	CSV  Format = "csv"
	XLS  Format = "xls"
	JSON Format = "json"
	HTML Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, XLS, JSON, HTML:
		return f, nil
	case "":
		return CSV, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv; charset=utf-8"
	case XLS:
		return "application/vnd.ms-excel"
	case JSON:
		return "application/json"
	case HTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string { return "." + string(f) }

type ColumnFormat string

const (
	Text       ColumnFormat = "text"
	Currency   ColumnFormat = "currency"
	Date       ColumnFormat = "date"
	Percentage ColumnFormat = "percentage"
	Number     ColumnFormat = "number"
	Boolean    ColumnFormat = "boolean"
)

type Column struct {
	Key    string       `json:"key"`
	Header string       `json:"header"`
	Format ColumnFormat `json:"format,omitempty"`
}

// Record maps column keys to raw values. Keys without a column are ignored.
type Record map[string]any

// Table is a titled set of records with the columns to export.
type Table struct {
	Title   string
	Columns []Column
	Records []Record
}

// Summary is the record-count line closing every export.
func Summary(n int) string {
	return fmt.Sprintf("%d enregistrement(s)", n)
}

func (t Table) cells() [][]string {
	out := make([][]string, 0, len(t.Records))
	for _, r := range t.Records {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = FormatValue(r[c.Key], c.Format)
		}
		out = append(out, row)
	}
	return out
}

func (t Table) headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Header
		if out[i] == "" {
			out[i] = c.Key
		}
	}
	return out
}

// Write renders the table in the given format.
func Write(w io.Writer, f Format, t Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export: no columns configured")
	}
	switch f {
	case CSV:
		return writeCSV(w, t)
	case XLS:
		return writeXLS(w, t)
	case JSON:
		return writeJSON(w, t)
	case HTML:
		return writeHTML(w, t)
	}
	return fmt.Errorf("export: unknown format %q", f)
}

// utf8BOM makes spreadsheet software detect the encoding.
const utf8BOM = "\ufeff"

func writeCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(t.headers()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.cells()); err != nil {
		return err
	}
	if err := cw.Write([]string{Summary(len(t.Records))}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func xmlText(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// writeXLS emits a SpreadsheetML 2003 workbook, which spreadsheet software opens as .xls.
func writeXLS(w io.Writer, t Table) error {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<?mso-application progid="Excel.Sheet"?>` + "\n")
	b.WriteString(`<Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet" xmlns:ss="urn:schemas-microsoft-com:office:spreadsheet">` + "\n")
	b.WriteString(`<Styles><Style ss:ID="h"><Font ss:Bold="1"/></Style></Styles>` + "\n")
	name := t.Title
	if name == "" {
		name = "Export"
	}
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	b.WriteString(`<Worksheet ss:Name="` + xmlText(name) + `"><Table>` + "\n")
	row := func(cells []string, style string) {
		b.WriteString("<Row>")
		for _, c := range cells {
			b.WriteString("<Cell")
			if style != "" {
				b.WriteString(` ss:StyleID="` + style + `"`)
			}
			b.WriteString(`><Data ss:Type="String">` + xmlText(c) + "</Data></Cell>")
		}
		b.WriteString("</Row>\n")
	}
	row(t.headers(), "h")
	for _, r := range t.cells() {
		row(r, "")
	}
	row([]string{Summary(len(t.Records))}, "")
	b.WriteString("</Table></Worksheet>\n</Workbook>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonExport struct {
	Title   string              `json:"title,omitempty"`
	Columns []Column            `json:"columns"`
	Records []map[string]string `json:"records"`
	Count   int                 `json:"count"`
	Summary string              `json:"summary"`
}

func writeJSON(w io.Writer, t Table) error {
	out := jsonExport{Title: t.Title, Columns: t.Columns, Records: []map[string]string{}, Count: len(t.Records), Summary: Summary(len(t.Records))}
	for _, row := range t.cells() {
		m := make(map[string]string, len(row))
		for i, c := range t.Columns {
			m[c.Key] = row[i]
		}
		out.Records = append(out.Records, m)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

var stripPolicy = bluemonday.StrictPolicy()

var htmlTmpl = template.Must(template.New("export").Funcs(template.FuncMap{
	// strip drops markup; the template escapes the remaining text once
	"strip": func(s string) string { return html.UnescapeString(stripPolicy.Sanitize(s)) },
}).Parse(`<!DOCTYPE html>
<html lang="fr"><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif}table{border-collapse:collapse;width:100%}th,td{border:1px solid #ccc;padding:4px 8px;text-align:left}@media print{button{display:none}}</style>
</head><body>
{{- if .Title}}<h1>{{.Title}}</h1>{{end}}
<table><thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}<tr>{{range .}}<td>{{strip .}}</td>{{end}}</tr>
{{end -}}
</tbody>
<tfoot><tr><td colspan="{{len .Headers}}">{{.Summary}}</td></tr></tfoot></table>
</body></html>
`))

func writeHTML(w io.Writer, t Table) error {
	return htmlTmpl.Execute(w, struct {
		Title   string
		Headers []string
		Rows    [][]string
		Summary string
	}{t.Title, t.headers(), t.cells(), Summary(len(t.Records))})
}
