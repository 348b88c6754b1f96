package exporter

import (
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFEncoder implements RowEncoder for PDF generation.
// It creates a simple grid layout and repeats the header on every page.
// PDF generation is memory intensive and slower than CSV/JSON.
type PDFEncoder struct {
	pdf           *fpdf.Fpdf
	w             io.Writer
	tr            func(string) string
	columns       []string
	colWidth      float64
	includeHeader bool
	written       bool
}

func NewPDFEncoder(w io.Writer, opts Options) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "") // Landscape, mm, A4
	e := &PDFEncoder{
		pdf:           pdf,
		w:             w,
		tr:            pdf.UnicodeTranslatorFromDescriptor(""),
		includeHeader: opts.IncludeHeader,
	}

	title := opts.Title
	if title == "" {
		title = "Query Results"
	}
	generated := time.Now().Format("2006-01-02 15:04:05")
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 7, e.tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 5, "Generated "+generated, "", 1, "L", false, 0, "")
		if e.includeHeader && len(e.columns) > 0 {
			e.headerRow()
		}
		pdf.SetFont("Arial", "", 9)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, pdfPageLabel(pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	return e
}

func pdfPageLabel(n int) string {
	return "Page " + cellText(n)
}

func (e *PDFEncoder) headerRow() {
	e.pdf.SetFont("Arial", "B", 9)
	e.pdf.SetFillColor(68, 114, 196)
	e.pdf.SetTextColor(255, 255, 255)
	for _, col := range e.columns {
		e.pdf.CellFormat(e.colWidth, 7, e.tr(col), "1", 0, "C", true, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetTextColor(0, 0, 0)
	e.pdf.SetFont("Arial", "", 9)
}

// WriteHeader records the columns and opens the first page.
func (e *PDFEncoder) WriteHeader(columns []string) error {
	e.columns = columns

	// Distribute the usable width equally.
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	e.colWidth = (pageWidth - left - right) / float64(max(len(columns), 1))

	e.pdf.AddPage()
	return e.pdf.Error()
}

// WriteRow writes a single row. Values wider than the cell are clipped.
func (e *PDFEncoder) WriteRow(values []any) error {
	if err := e.pdf.Error(); err != nil {
		return err
	}
	for _, v := range values {
		text := e.tr(cellText(v))
		for len(text) > 0 && e.pdf.GetStringWidth(text) > e.colWidth-2 {
			text = text[:len(text)-1]
		}
		e.pdf.CellFormat(e.colWidth, 6, text, "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	return e.pdf.Error()
}

// Flush writes the document. It only writes once.
func (e *PDFEncoder) Flush() error {
	if e.written {
		return nil
	}
	e.written = true
	return e.pdf.Output(e.w)
}

func (e *PDFEncoder) Error() error {
	return e.pdf.Error()
}

func (e *PDFEncoder) Close() error {
	return e.Flush()
}
