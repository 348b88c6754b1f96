package engine

import (
	"encoding/json"
	"fmt"
)

// Outcome is the result of one statement. Exactly one of three shapes is
// populated: a failure (Err set), a row result (Query set) or a mutation.
type Outcome struct {
	Err *Error

	Query      bool
	Columns    []string
	Rows       [][]any
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
	QueryID    string
	Truncated  bool

	Message      string
	RowsAffected int64

	// Set for statements of a batch.
	StatementIndex int
	OriginalSQL    string
}

func failed(err *Error) *Outcome {
	return &Outcome{Err: err}
}

func (o *Outcome) envelope() map[string]any {
	var m map[string]any
	switch {
	case o.Err != nil:
		m = map[string]any{"status": "error", "message": o.Err.Message, "error_type": o.Err.Kind}
	case o.Query:
		rows := o.Rows
		if rows == nil {
			rows = [][]any{}
		}
		m = map[string]any{
			"status":      "success",
			"columns":     o.Columns,
			"results":     rows,
			"count":       len(rows),
			"total_count": o.TotalCount,
			"page":        o.Page,
			"page_size":   o.PageSize,
			"total_page":  o.TotalPages,
			"query_id":    o.QueryID,
		}
		if o.Truncated {
			m["truncated"] = true
		}
	default:
		m = map[string]any{"status": "success", "message": o.Message, "rows_affected": o.RowsAffected}
	}
	if o.StatementIndex > 0 {
		m["statement_index"] = o.StatementIndex
		m["original_sql"] = o.OriginalSQL
	}
	return m
}

func (o *Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.envelope())
}

// Response is what a submission produces: one outcome, or a batch.
type Response struct {
	Batch    bool
	Outcomes []*Outcome
}

func single(o *Outcome) *Response {
	return &Response{Outcomes: []*Outcome{o}}
}

// Failed reports whether a single-statement response carries an error.
// Batches are always reported as successful envelopes.
func (r *Response) Failed() bool {
	return !r.Batch && len(r.Outcomes) == 1 && r.Outcomes[0].Err != nil
}

func (r *Response) MarshalJSON() ([]byte, error) {
	if !r.Batch {
		return json.Marshal(r.Outcomes[0])
	}
	return json.Marshal(map[string]any{
		"status":   "success",
		"message":  fmt.Sprintf("executed %d statements", len(r.Outcomes)),
		"results":  r.Outcomes,
		"is_batch": true,
	})
}
