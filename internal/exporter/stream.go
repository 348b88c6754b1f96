package exporter

import (
	"context"
	"fmt"
	"time"

	"sql-console/internal/resultstore"
)

// ExportResult contains stats about the export.
type ExportResult struct {
	RowsProcessed int64
	Duration      time.Duration
}

// columnSizer is implemented by encoders that size columns up front.
type columnSizer interface {
	SizeColumns(widths []int) error
}

// StreamResult writes a stored result through the encoder and flushes it.
// The handle is only read. The caller still closes the encoder.
func StreamResult(ctx context.Context, h *resultstore.Handle, encoder RowEncoder) (*ExportResult, error) {
	start := time.Now()

	if sizer, ok := encoder.(columnSizer); ok {
		if err := sizer.SizeColumns(columnWidths(h)); err != nil {
			return nil, fmt.Errorf("failed to size columns: %w", err)
		}
	}
	if err := encoder.WriteHeader(h.Columns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var rowCount int64
	for i, row := range h.Rows {
		// Stop if the client went away.
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := encoder.WriteRow(row); err != nil {
			return nil, fmt.Errorf("row write failed: %w", err)
		}
		rowCount++
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}
	if err := encoder.Error(); err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	return &ExportResult{
		RowsProcessed: rowCount,
		Duration:      time.Since(start),
	}, nil
}

func columnWidths(h *resultstore.Handle) []int {
	widths := make([]int, len(h.Columns))
	for i, col := range h.Columns {
		widths[i] = displayWidth(col)
	}
	for _, row := range h.Rows {
		for i, v := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], displayWidth(v))
			}
		}
	}
	return widths
}
