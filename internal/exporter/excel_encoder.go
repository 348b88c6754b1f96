package exporter

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Query Results"
	maxExcelRows = 1048576
	maxColWidth  = 50
)

// ExcelEncoder implements RowEncoder for Excel (.xlsx) files.
// It uses excelize.StreamWriter for efficient writing of large files.
type ExcelEncoder struct {
	f             *excelize.File
	sw            *excelize.StreamWriter
	w             io.Writer
	rowIdx        int
	err           error
	includeHeader bool
	headerStyle   int
	cellStyle     int
}

func border() []excelize.Border {
	var b []excelize.Border
	for _, side := range []string{"left", "right", "top", "bottom"} {
		b = append(b, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return b
}

// NewExcelEncoder creates a workbook with one streamed sheet. The header row
// is bold white on opts.HeaderColor.
func NewExcelEncoder(w io.Writer, opts Options) *ExcelEncoder {
	e := &ExcelEncoder{w: w, rowIdx: 1, includeHeader: opts.IncludeHeader}

	f := excelize.NewFile()
	e.f = f
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		e.err = err
		return e
	}

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	e.headerStyle, e.err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{HeaderColor(opts.HeaderColor)}},
		Alignment: center,
		Border:    border(),
	})
	if e.err != nil {
		return e
	}
	e.cellStyle, e.err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 10},
		Alignment: center,
		Border:    border(),
	})
	if e.err != nil {
		return e
	}

	e.sw, e.err = f.NewStreamWriter(sheetName)
	return e
}

// SizeColumns sets column widths from the longest value of each column.
// The stream writer only accepts widths before the first row.
func (e *ExcelEncoder) SizeColumns(widths []int) error {
	if e.err != nil {
		return e.err
	}
	for i, w := range widths {
		width := float64(min(w+2, maxColWidth))
		if err := e.sw.SetColWidth(i+1, i+1, width); err != nil {
			e.err = err
			return err
		}
	}
	return nil
}

func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	if !e.includeHeader {
		return nil
	}

	row := make([]any, len(columns))
	for i, col := range columns {
		row[i] = excelize.Cell{StyleID: e.headerStyle, Value: col}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	row := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
			row[i] = excelize.Cell{StyleID: e.cellStyle}
		case []byte:
			row[i] = excelize.Cell{StyleID: e.cellStyle, Value: guardFormula(string(val))}
		case string:
			row[i] = excelize.Cell{StyleID: e.cellStyle, Value: guardFormula(val)}
		case time.Time:
			row[i] = excelize.Cell{StyleID: e.cellStyle, Value: cellText(val)}
		default:
			// Numbers, booleans and times are handled natively.
			row[i] = excelize.Cell{StyleID: e.cellStyle, Value: v}
		}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) setRow(row []any) error {
	if e.rowIdx > maxExcelRows {
		e.err = fmt.Errorf("excel row limit exceeded (%d rows)", maxExcelRows)
		return e.err
	}
	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		e.err = err
		return err
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		e.err = err
		return err
	}
	e.rowIdx++
	return nil
}

func (e *ExcelEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.sw.Flush(); err != nil {
		e.err = err
		return err
	}
	return e.f.Write(e.w)
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

func (e *ExcelEncoder) Close() error {
	return e.f.Close()
}

// displayWidth is the width used for column sizing.
func displayWidth(v any) int {
	return utf8.RuneCountInString(cellText(v))
}
