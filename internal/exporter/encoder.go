package exporter

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// RowEncoder defines a common interface for the export formats.
// It allows the exporter to be agnostic of the underlying output format.
type RowEncoder interface {
	// WriteHeader receives the column names. It is called exactly once before
	// any rows, even when the header row itself is not written.
	WriteHeader(columns []string) error

	// WriteRow writes a single row of data.
	WriteRow(values []any) error

	// Flush ensures all buffered data is written to the underlying writer.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	io.Closer
}

// Format is an export file format.
type Format string

const (
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatHTML  Format = "html"
	FormatJSON  Format = "json"
	FormatPDF   Format = "pdf"
)

func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return ".xlsx"
	case FormatJSON:
		return ".jsonl"
	default:
		return "." + string(f)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatJSON:
		return "application/x-ndjson"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Options tune an encoder. Zero values mean the format defaults.
type Options struct {
	IncludeHeader bool
	// Separator is the CSV field delimiter.
	Separator rune
	// HeaderColor is the Excel header fill, six hex digits.
	HeaderColor string
	// Title heads the HTML and PDF reports.
	Title string
}

// DefaultHeaderColor is the Excel header fill used when none is requested.
const DefaultHeaderColor = "4472C4"

// HeaderColors are the Excel header fills offered to clients.
var HeaderColors = []string{"4472C4", "5B9BD5", "70AD47", "FFC000", "ED7D31"}

// HeaderColor returns the supported fill for s, or the default.
func HeaderColor(s string) string {
	s = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if slices.Contains(HeaderColors, s) {
		return s
	}
	return DefaultHeaderColor
}

var separators = map[string]rune{
	"comma": ',', "semicolon": ';', "tab": '\t', "pipe": '|', "space": ' ',
}

// Separator maps a separator name to its rune. Unknown names mean comma.
func Separator(name string) rune {
	if r, ok := separators[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r
	}
	return ','
}

// NewEncoder builds the encoder for f writing to w.
func NewEncoder(f Format, w io.Writer, opts Options) (RowEncoder, error) {
	switch f {
	case FormatExcel:
		return NewExcelEncoder(w, opts), nil
	case FormatCSV:
		return NewCSVEncoder(w, opts), nil
	case FormatHTML:
		return NewHTMLEncoder(w, opts), nil
	case FormatJSON:
		return NewJSONEncoder(w), nil
	case FormatPDF:
		return NewPDFEncoder(w, opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// FileName returns the download name for an export. A requested name keeps
// only its base and gets the format extension when it lacks one.
func FileName(requested string, f Format, now time.Time) string {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(requested, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = "query_result_" + now.Format("20060102150405")
	}
	if !strings.HasSuffix(strings.ToLower(name), f.Extension()) {
		name += f.Extension()
	}
	return name
}
