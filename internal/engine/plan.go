package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sql-console/internal/driver"
	"sql-console/internal/security"
	"sql-console/internal/statement"
)

// PlanResult is a query plan normalized into a Step-indexed table.
type PlanResult struct {
	Columns []string
	Data    []map[string]any
	Family  driver.Family
	Note    string
}

func (p *PlanResult) Envelope() map[string]any {
	data := p.Data
	if data == nil {
		data = []map[string]any{}
	}
	return map[string]any{
		"status":  "success",
		"data":    data,
		"columns": p.Columns,
		"db_type": p.Family,
		"message": p.Note,
	}
}

// Explain obtains and normalizes the plan of a SELECT, EXPLAIN or WITH..SELECT
// statement on the given profile, or the default profile when id is empty.
func (e *Engine) Explain(ctx context.Context, sql, profileID string) (*PlanResult, error) {
	if err := security.Screen(sql, MaxPlanLength); err != nil {
		return nil, screenError(err)
	}
	if len(statement.Split(sql)) > 1 {
		return nil, newError(KindValidation, nil, "plan analysis accepts a single statement")
	}
	stmt := statement.TrimTerminator(strings.TrimSpace(sql))
	if !statement.IsPlannable(stmt) {
		return nil, newError(KindValidation, nil, "plan analysis supports only SELECT, EXPLAIN and WITH queries")
	}
	if err := security.Classify(stmt); err != nil {
		return nil, screenError(err)
	}

	p, adapter, family, rerr := e.resolve(profileID)
	if rerr != nil {
		return nil, rerr
	}
	form, err := adapter.ExplainForm(stmt)
	if errors.Is(err, driver.ErrExplainUnsupported) {
		return nil, newError(KindUnsupportedType, err, "query plan analysis is not supported for %s", family)
	}
	if err != nil {
		return nil, newError(KindValidation, err, "%s", err.Error())
	}

	target, err := p.Target()
	if err != nil {
		return nil, resolutionError(err)
	}
	conn, cerr := e.connect(ctx, adapter, target)
	if cerr != nil {
		return nil, cerr
	}
	defer conn.Close()

	raw, err := conn.Execute(ctx, form.Statement, 0)
	if err != nil {
		return nil, classifyFailure(err)
	}

	result := &PlanResult{Family: family, Note: "query plan analysis complete"}
	if form.Followup == "" {
		result.Columns, result.Data = normalizePlan(raw)
		return result, nil
	}

	structured, err := conn.Execute(ctx, form.Followup, 0)
	if form.Cleanup != "" {
		if _, cleanupErr := conn.Execute(ctx, form.Cleanup, 0); cleanupErr != nil {
			slog.Warn("Plan table cleanup failed", "db_id", p.ID, "error", cleanupErr)
		}
	}
	if err != nil {
		slog.Warn("Plan table read failed", "db_id", p.ID, "error", err)
		result.Columns, result.Data = stepRows(raw)
		result.Note = fmt.Sprintf("plan table unavailable, showing raw output: %s", clip(err.Error(), messageLimit))
		return result, nil
	}
	result.Columns, result.Data = stepRows(structured)
	return result, nil
}

// normalizePlan turns driver output into Step-indexed rows. A single
// "QUERY PLAN" column of text becomes one step per non-blank line.
func normalizePlan(raw *driver.Result) ([]string, []map[string]any) {
	if len(raw.Columns) != 1 || !strings.EqualFold(raw.Columns[0], "QUERY PLAN") || len(raw.Rows) == 0 {
		return stepRows(raw)
	}

	var data []map[string]any
	for _, row := range raw.Rows {
		for _, line := range strings.Split(fmt.Sprint(row[0]), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				data = append(data, map[string]any{"Step": len(data) + 1, "Operation": line})
			}
		}
	}
	if len(data) > 0 {
		return []string{"Step", "Operation"}, data
	}

	data = make([]map[string]any, len(raw.Rows))
	for i, row := range raw.Rows {
		data[i] = map[string]any{"Step": i + 1, "Description": row[0]}
	}
	return []string{"Step", "Description"}, data
}

// stepRows keeps every column and prepends the step number.
func stepRows(raw *driver.Result) ([]string, []map[string]any) {
	columns := append([]string{"Step"}, raw.Columns...)
	data := make([]map[string]any, len(raw.Rows))
	for i, row := range raw.Rows {
		m := make(map[string]any, len(columns))
		m["Step"] = i + 1
		for j, col := range raw.Columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		data[i] = m
	}
	return columns, data
}
