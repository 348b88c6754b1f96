package driver

import (
	"context"
	"errors"
	"time"
)

// ErrExplainUnsupported is returned by ExplainForm for families without an
// EXPLAIN path.
var ErrExplainUnsupported = errors.New("query plan analysis is not supported for this database type")

// Timeouts is the driver timeout configuration applied to every new connection.
type Timeouts struct {
	// Statement bounds a single statement where the family can enforce it.
	Statement time.Duration
	// Connect bounds establishing the session.
	Connect time.Duration
}

// Target is a resolved connection target with the secret in clear text.
// It must not be logged.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// SSLMode is passed through to PostgreSQL-family connections.
	SSLMode string
}

// Adapter hides the protocol differences of one wire protocol. Families that
// share a protocol share one adapter.
type Adapter interface {
	// Protocol returns the wire protocol name (e.g., "postgres", "mysql").
	Protocol() string

	// Families lists the family tags served by this adapter.
	Families() []Family

	// Connect opens a fresh session. The caller must Close it.
	Connect(ctx context.Context, target Target, timeouts Timeouts) (Conn, error)

	// TimeoutDirective returns the statements to run right after connecting.
	// Families with connection-level or no timeouts return nil.
	TimeoutDirective(timeouts Timeouts) []string

	// ExplainForm builds the dialect-specific plan statements for sql.
	ExplainForm(sql string) (Plan, error)
}

// Conn is one scoped session. Close must be called on every path.
type Conn interface {
	// Apply runs a session-level statement outside any transaction.
	Apply(ctx context.Context, directive string) error

	// Execute runs one statement in its own transaction. It commits on
	// success and rolls back on error. At most maxRows rows are fetched
	// when maxRows > 0.
	Execute(ctx context.Context, stmt string, maxRows int) (*Result, error)

	Close() error
}

// Result is the raw outcome of one statement.
type Result struct {
	// Columns is non-empty when the driver reported column metadata.
	Columns []string
	Rows    [][]any
	// RowsAffected is set for mutations.
	RowsAffected int64
	// Truncated reports that rows beyond the fetch cap were left unread.
	Truncated bool
}

// HasColumns reports whether the statement produced a result set.
func (r *Result) HasColumns() bool {
	return r != nil && len(r.Columns) > 0
}

// Plan is the set of statements needed to obtain a query plan.
type Plan struct {
	// Statement is the EXPLAIN form of the user's statement.
	Statement string
	// Followup reads structured plan rows when Statement itself returns none.
	Followup string
	// Cleanup removes what Statement left behind. Its errors are ignored.
	Cleanup string
}
