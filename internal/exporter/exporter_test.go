package exporter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"sql-console/internal/resultstore"
)

func sampleHandle() *resultstore.Handle {
	return &resultstore.Handle{
		ID:      "q1",
		Columns: []string{"id", "name", "note"},
		Rows: [][]any{
			{int64(1), "alice", nil},
			{int64(-2), "=SUM(A1)", "<b>bold</b>"},
			{int64(3), "bob", time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)},
		},
		CreatedAt: time.Now(),
	}
}

func export(t *testing.T, f Format, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := NewEncoder(f, &buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := StreamResult(context.Background(), sampleHandle(), enc)
	if err != nil {
		t.Fatalf("StreamResult failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res.RowsProcessed != 3 {
		t.Errorf("processed %d rows", res.RowsProcessed)
	}
	return buf.Bytes()
}

func TestCSV(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantFirst string
		wantLines int
	}{
		{"HeaderComma", Options{IncludeHeader: true, Separator: ','}, "id,name,note", 4},
		{"NoHeaderSemicolon", Options{Separator: ';'}, "1;alice;", 3},
		{"Tab", Options{IncludeHeader: true, Separator: Separator("tab")}, "id\tname\tnote", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := export(t, FormatCSV, tt.opts)
			if !bytes.HasPrefix(out, utf8BOM) {
				t.Fatal("missing BOM")
			}
			lines := strings.Split(strings.TrimRight(string(out[len(utf8BOM):]), "\n"), "\n")
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines: %q", len(lines), lines)
			}
			if lines[0] != tt.wantFirst {
				t.Errorf("first line = %q, want %q", lines[0], tt.wantFirst)
			}
		})
	}
}

func TestCSV_Values(t *testing.T) {
	out := string(export(t, FormatCSV, Options{IncludeHeader: true}))
	for _, want := range []string{"-2,'=SUM(A1),<b>bold</b>", "3,bob,2024-05-06 07:08:09", "1,alice,\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGuardFormula(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"=SUM(A1)", "'=SUM(A1)"},
		{"@cmd", "'@cmd"},
		{"-2+3", "'-2+3"},
		{"+cmd|' /C calc'!A0", "'+cmd|' /C calc'!A0"},
		{"-12.50", "-12.50"},
		{"+7", "+7"},
		{"-1e3", "-1e3"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := guardFormula(tt.in); got != tt.want {
			t.Errorf("guardFormula(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExcel(t *testing.T) {
	out := export(t, FormatExcel, Options{IncludeHeader: true, HeaderColor: "70ad47"})

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("not a workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][1] != "name" || rows[2][1] != "'=SUM(A1)" {
		t.Errorf("unexpected rows %v", rows)
	}

	styleID, err := f.GetCellStyle(sheetName, "A1")
	if err != nil {
		t.Fatal(err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		t.Fatal(err)
	}
	if !style.Font.Bold || len(style.Fill.Color) == 0 || !strings.HasSuffix(strings.ToUpper(style.Fill.Color[0]), "70AD47") {
		t.Errorf("unexpected header style %+v", style.Fill)
	}
}

func TestExcel_NoHeader(t *testing.T) {
	out := export(t, FormatExcel, Options{})
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows(sheetName)
	if len(rows) != 3 || rows[0][1] != "alice" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestHTML(t *testing.T) {
	out := string(export(t, FormatHTML, Options{IncludeHeader: true}))
	for _, want := range []string{
		"<th>name</th>",
		"&lt;b&gt;bold&lt;/b&gt;",
		"<td>&nbsp;</td>",
		"<b>Rows:</b> 3",
		"<b>Columns:</b> 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(out, "<b>bold</b></td>") {
		t.Error("cell values must be escaped")
	}
}

func TestJSONLines(t *testing.T) {
	out := export(t, FormatJSON, Options{})
	sc := bufio.NewScanner(bytes.NewReader(out))
	var rows []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		rows = append(rows, m)
	}
	if len(rows) != 3 || rows[0]["name"] != "alice" || rows[0]["note"] != nil {
		t.Errorf("unexpected rows %v", rows)
	}
	if rows[2]["note"] != "2024-05-06 07:08:09" {
		t.Errorf("time not formatted: %v", rows[2]["note"])
	}
}

func TestPDF(t *testing.T) {
	out := export(t, FormatPDF, Options{IncludeHeader: true, Title: "Report"})
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("not a PDF: %q", out[:min(len(out), 16)])
	}
	if bytes.Count(out, []byte("%%EOF")) != 1 {
		t.Error("document written more than once")
	}
}

func TestStreamResult_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if _, err := StreamResult(ctx, sampleHandle(), NewJSONEncoder(&buf)); err == nil {
		t.Error("expected context error")
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		requested string
		format    Format
		want      string
	}{
		{"", FormatCSV, "query_result_20240102030405.csv"},
		{"report", FormatExcel, "report.xlsx"},
		{"report.XLSX", FormatExcel, "report.XLSX"},
		{"../../etc/passwd", FormatHTML, "passwd.html"},
		{`..\evil`, FormatJSON, "evil.jsonl"},
	}
	for _, tt := range tests {
		if got := FileName(tt.requested, tt.format, now); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.requested, got, tt.want)
		}
	}
}

func TestHeaderColorAndSeparator(t *testing.T) {
	if HeaderColor("#ffc000") != "FFC000" || HeaderColor("123456") != DefaultHeaderColor {
		t.Error("unexpected header color mapping")
	}
	if Separator("pipe") != '|' || Separator("bogus") != ',' {
		t.Error("unexpected separator mapping")
	}
}
