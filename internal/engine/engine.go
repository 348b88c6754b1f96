// Package engine runs submitted SQL against the configured database profiles.
// It validates and screens a submission, splits it into statements, sends
// each one through the driver adapter of the profile's family, paginates
// row results and registers them in the result store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"sql-console/internal/driver"
	"sql-console/internal/profile"
	"sql-console/internal/resultstore"
	"sql-console/internal/security"
	"sql-console/internal/statement"
)

const (
	MaxStatementLength = 10000
	MaxPlanLength      = 5000
	MaxPageSize        = 1000
)

// ProfileSource resolves profiles with their secret opened.
type ProfileSource interface {
	Get(id string) (*profile.Profile, error)
	Default() (*profile.Profile, error)
}

// Limits is read on every execution so that settings changes apply to the
// next connection.
type Limits interface {
	Timeouts() driver.Timeouts
	MaxResultRows() int
}

// Record describes one executed statement for audit subscribers.
type Record struct {
	ProfileID string
	Family    driver.Family
	SQL       string
	Status    string
	Kind      Kind
	Rows      int64
	Duration  time.Duration
	At        time.Time
}

type Options struct {
	// Concurrency caps statements in flight across all requests. Zero means
	// no cap.
	Concurrency int64
	// Observe, when set, receives a Record after every statement.
	Observe func(Record)
}

type Engine struct {
	registry *driver.Registry
	profiles ProfileSource
	limits   Limits
	results  resultstore.Store
	sem      *semaphore.Weighted
	observe  func(Record)
	now      func() time.Time
}

func New(registry *driver.Registry, profiles ProfileSource, limits Limits, results resultstore.Store, opts Options) *Engine {
	e := &Engine{
		registry: registry,
		profiles: profiles,
		limits:   limits,
		results:  results,
		observe:  opts.Observe,
		now:      time.Now,
	}
	if opts.Concurrency > 0 {
		e.sem = semaphore.NewWeighted(opts.Concurrency)
	}
	return e
}

// Request is one submission from the console.
type Request struct {
	SQL       string
	Page      int
	PageSize  int
	ProfileID string
}

// Submit validates req and executes every statement it contains. Failures
// are reported inside the Response; Submit itself never fails.
func (e *Engine) Submit(ctx context.Context, req Request) *Response {
	if err := security.Screen(req.SQL, MaxStatementLength); err != nil {
		slog.Warn("Submission rejected", "error", err, "sql", statement.Truncate(req.SQL, statement.EchoLimit))
		return single(failed(screenError(err)))
	}
	if req.Page < 1 || req.PageSize < 1 || req.PageSize > MaxPageSize {
		return single(failed(newError(KindValidation, nil,
			"page must be >= 1 and page size between 1 and %d", MaxPageSize)))
	}

	stmts := statement.Split(req.SQL)
	switch len(stmts) {
	case 0:
		return single(failed(newError(KindValidation, security.ErrEmptyQuery, "%s", security.ErrEmptyQuery.Error())))
	case 1:
		return single(e.execute(ctx, stmts[0], req))
	}

	resp := &Response{Batch: true}
	for i, stmt := range stmts {
		out := e.execute(ctx, stmt, req)
		out.StatementIndex = i + 1
		out.OriginalSQL = statement.Truncate(stmt, statement.EchoLimit)
		resp.Outcomes = append(resp.Outcomes, out)

		if out.Err != nil && !statement.LooksLikeQuery(stmt) {
			break
		}
	}
	return resp
}

// execute runs one statement on a fresh connection.
func (e *Engine) execute(ctx context.Context, stmt string, req Request) *Outcome {
	start := e.now()
	rec := Record{ProfileID: req.ProfileID, SQL: statement.Truncate(stmt, statement.EchoLimit), At: start}

	out := e.run(ctx, stmt, req, &rec)

	rec.Duration = e.now().Sub(start)
	if out.Err != nil {
		rec.Status, rec.Kind = "error", out.Err.Kind
		slog.Warn("Statement failed",
			"db_id", rec.ProfileID, "db_type", rec.Family, "kind", out.Err.Kind,
			"sql", rec.SQL, "duration", rec.Duration, "error", out.Err.Cause)
	} else {
		rec.Status = "success"
		slog.Info("Statement executed",
			"db_id", rec.ProfileID, "db_type", rec.Family, "query_id", out.QueryID,
			"rows", rec.Rows, "sql", rec.SQL, "duration", rec.Duration)
	}
	if e.observe != nil {
		e.observe(rec)
	}
	return out
}

func (e *Engine) run(ctx context.Context, stmt string, req Request, rec *Record) *Outcome {
	if err := security.Classify(stmt); err != nil {
		return failed(screenError(err))
	}

	p, adapter, family, rerr := e.resolve(req.ProfileID)
	if rerr != nil {
		return failed(rerr)
	}
	rec.ProfileID, rec.Family = p.ID, family

	target, err := p.Target()
	if err != nil {
		return failed(resolutionError(err))
	}

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return failed(timeoutError(err))
		}
		defer e.sem.Release(1)
	}

	conn, cerr := e.connect(ctx, adapter, target)
	if cerr != nil {
		return failed(cerr)
	}
	defer conn.Close()

	res, err := conn.Execute(ctx, stmt, e.limits.MaxResultRows())
	if err != nil {
		return failed(classifyFailure(err))
	}

	if !res.HasColumns() {
		rec.Rows = res.RowsAffected
		return &Outcome{
			Message:      fmt.Sprintf("statement executed, rows affected: %d", res.RowsAffected),
			RowsAffected: res.RowsAffected,
		}
	}

	total := len(res.Rows)
	rec.Rows = int64(total)
	id := e.results.Put(res.Columns, res.Rows, res.Truncated)
	pageRows := paginate(res.Rows, req.Page, req.PageSize)
	return &Outcome{
		Query:      true,
		Columns:    res.Columns,
		Rows:       pageRows,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: (total + req.PageSize - 1) / req.PageSize,
		QueryID:    id,
		Truncated:  res.Truncated,
	}
}

// resolve looks up the requested profile, or the default one when id is
// empty, and the adapter serving its family. A missing id never falls back
// to the default.
func (e *Engine) resolve(id string) (*profile.Profile, driver.Adapter, driver.Family, *Error) {
	var (
		p   *profile.Profile
		err error
	)
	if id != "" {
		p, err = e.profiles.Get(id)
	} else {
		p, err = e.profiles.Default()
	}
	if err != nil {
		return nil, nil, "", resolutionError(err)
	}

	adapter, family, err := e.registry.Resolve(p.Type)
	if err != nil {
		return nil, nil, "", resolutionError(err)
	}
	return p, adapter, family, nil
}

// connect opens a session and applies the family's timeout directives.
func (e *Engine) connect(ctx context.Context, adapter driver.Adapter, target driver.Target) (driver.Conn, *Error) {
	timeouts := e.limits.Timeouts()
	conn, err := adapter.Connect(ctx, target, timeouts)
	if err != nil {
		return nil, connectionError(err)
	}
	for _, directive := range adapter.TimeoutDirective(timeouts) {
		if err := conn.Apply(ctx, directive); err != nil {
			_ = conn.Close()
			return nil, classifyFailure(err)
		}
	}
	return conn, nil
}

// Families lists the database types this engine can connect to.
func (e *Engine) Families() []driver.Family {
	return e.registry.Supported()
}

// TestConnection opens and closes a session for an unsaved profile.
func (e *Engine) TestConnection(ctx context.Context, p profile.Profile) error {
	if err := profile.Validate(p); err != nil {
		return newError(KindValidation, err, "%s", err.Error())
	}
	adapter, _, err := e.registry.Resolve(p.Type)
	if err != nil {
		return resolutionError(err)
	}
	target, err := p.Target()
	if err != nil {
		return newError(KindValidation, err, "%s", err.Error())
	}
	conn, cerr := e.connect(ctx, adapter, target)
	if cerr != nil {
		return cerr
	}
	return conn.Close()
}

// paginate returns the rows of the 1-based page. Pages past the end are empty.
func paginate(rows [][]any, page, size int) [][]any {
	// Compare page numbers, not offsets: (page-1)*size can overflow.
	if size < 1 || page < 1 || page-1 >= (len(rows)+size-1)/size {
		return [][]any{}
	}
	start := (page - 1) * size
	end := min(start+size, len(rows))
	return rows[start:end]
}
