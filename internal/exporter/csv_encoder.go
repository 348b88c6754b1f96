package exporter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVEncoder wraps encoding/csv with type-aware, low-allocation logic.
// It uses a bufio.Writer to minimize IO syscalls.
type CSVEncoder struct {
	w             *csv.Writer
	buf           *bufio.Writer
	includeHeader bool
	wroteBOM      bool
}

// NewCSVEncoder creates a new CSV encoder that writes to the provided io.Writer.
func NewCSVEncoder(w io.Writer, opts Options) *CSVEncoder {
	buf := bufio.NewWriterSize(w, 64*1024) // 64KB buffer
	cw := csv.NewWriter(buf)
	if opts.Separator != 0 {
		cw.Comma = opts.Separator
	}
	return &CSVEncoder{
		w:             cw,
		buf:           buf,
		includeHeader: opts.IncludeHeader,
	}
}

func (e *CSVEncoder) bom() error {
	if e.wroteBOM {
		return nil
	}
	e.wroteBOM = true
	_, err := e.buf.Write(utf8BOM)
	return err
}

// WriteHeader writes the CSV header row when headers are enabled.
func (e *CSVEncoder) WriteHeader(columns []string) error {
	if err := e.bom(); err != nil {
		return err
	}
	if !e.includeHeader {
		return nil
	}
	return e.w.Write(columns)
}

// WriteRow converts each value to text without fmt.Sprintf on the hot types.
func (e *CSVEncoder) WriteRow(values []any) error {
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = textField(v)
	}
	return e.w.Write(record)
}

// Flush ensures all data is written to the underlying writer.
func (e *CSVEncoder) Flush() error {
	if err := e.bom(); err != nil {
		return err
	}
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	return e.buf.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.w.Error()
}

func (e *CSVEncoder) Close() error {
	return e.Flush()
}

// cellText renders a stored value. NULL is the empty string.
func cellText(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(val)
}

// textField renders v and guards text values against formula injection.
// Numbers keep their sign.
func textField(v any) string {
	switch v.(type) {
	case string, []byte:
		return guardFormula(cellText(v))
	}
	return cellText(v)
}

// guardFormula prefixes values a spreadsheet would evaluate as a formula.
// Signed numbers, such as DECIMAL columns read as text, are left alone.
func guardFormula(s string) string {
	if len(s) > 0 {
		switch s[0] {
		case '=', '@':
			return "'" + s
		case '+', '-':
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				return s
			}
			return "'" + s
		}
	}
	return s
}
