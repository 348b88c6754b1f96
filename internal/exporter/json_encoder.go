package exporter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// JSONEncoder implements RowEncoder for JSON Lines format.
// Each row is exported as a JSON object on a new line.
type JSONEncoder struct {
	buf     *bufio.Writer
	enc     *json.Encoder
	columns []string
	err     error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONEncoder{buf: buf, enc: enc}
}

// WriteHeader captures the column names to be used as JSON keys.
func (e *JSONEncoder) WriteHeader(columns []string) error {
	e.columns = columns
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	row := make(map[string]any, len(values))
	for i, v := range values {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(e.columns) {
			name = e.columns[i]
		}
		switch val := v.(type) {
		case []byte:
			row[name] = string(val)
		case time.Time:
			row[name] = cellText(val)
		default:
			row[name] = v
		}
	}

	// Encode appends the newline.
	if err := e.enc.Encode(row); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.buf.Flush()
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return e.Flush()
}
