package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sql-console/internal/statement"
)

// sqlConn is a single pinned database/sql session. The pool behind it is
// capped at one connection and closed with the session; nothing is reused
// across requests.
type sqlConn struct {
	db   *sql.DB
	conn *sql.Conn
}

// OpenSQL opens driverName with dsn and pins one session, bounded by
// connectTimeout. It is exported for adapters built outside this package.
func OpenSQL(ctx context.Context, driverName, dsn string, connectTimeout time.Duration) (Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}
	return &sqlConn{db: db, conn: conn}, nil
}

func (c *sqlConn) Apply(ctx context.Context, directive string) error {
	if _, err := c.conn.ExecContext(ctx, directive); err != nil {
		return fmt.Errorf("apply %q: %w", directive, err)
	}
	return nil
}

func (c *sqlConn) Execute(ctx context.Context, stmt string, maxRows int) (res *Result, err error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if statement.ReturnsRows(stmt) {
		res, err = fetchRows(ctx, tx, stmt, maxRows)
	} else {
		res, err = execStatement(ctx, tx, stmt)
	}
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

func execStatement(ctx context.Context, tx *sql.Tx, stmt string) (*Result, error) {
	r, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		// Some drivers cannot report a count; the statement still succeeded.
		n = 0
	}
	return &Result{RowsAffected: n}, nil
}

func fetchRows(ctx context.Context, tx *sql.Tx, stmt string, maxRows int) (*Result, error) {
	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	res := &Result{Columns: columns, Rows: [][]any{}}
	if len(columns) == 0 {
		return res, rows.Err()
	}

	colCount := len(columns)
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}

		values := make([]any, colCount)
		scanArgs := make([]any, colCount)
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		for i, v := range values {
			// Drivers hand back text and numerics as []byte that is only
			// valid until the next Scan.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return res, nil
}
