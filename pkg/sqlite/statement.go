package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// Statement is a prepared statement on a Connection.
type Statement struct {
	conn *Connection
	stmt *sql.Stmt
	sql  SQLText
}

// SQL returns the statement text as prepared.
func (s *Statement) SQL() SQLText { return s.sql }

// Close releases the prepared statement.
func (s *Statement) Close() error {
	return s.stmt.Close()
}

// Execute runs the statement and returns the number of rows changed.
func (s *Statement) Execute(ctx context.Context, params Params, sp span.Span) (int64, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.execute(ctx, params, sp)
}

// Query runs the statement and collects every row into a list of records.
func (s *Statement) Query(ctx context.Context, params Params, sp span.Span) (value.Value, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.query(ctx, params, sp)
}

// QueryEach runs the statement and calls fn for each row in order. The
// context is checked before every row; once it is done iteration stops and
// its error is returned. An error from fn stops iteration and is returned.
func (s *Statement) QueryEach(ctx context.Context, params Params, sp span.Span, fn func(i int, row value.Value) error) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	return s.queryEach(ctx, params, sp, fn)
}

func (s *Statement) execute(ctx context.Context, params Params, sp span.Span) (int64, error) {
	expanded := s.sql.withText(expandSQL(s.sql.String(), params))
	args := params.args()
	start := time.Now()

	var res sql.Result
	err := retryBusy(ctx, s.conn.opts, "execute", func() error {
		var err error
		res, err = s.stmt.ExecContext(ctx, args...)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, executeError(expanded, sp, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, executeError(expanded, sp, err)
	}

	s.conn.opts.logger(ctx).Query().Debug("executed statement",
		"sql", expanded.String(),
		"rows_affected", n,
		"duration", time.Since(start).String(),
	)
	return n, nil
}

func (s *Statement) query(ctx context.Context, params Params, sp span.Span) (value.Value, error) {
	rows := []value.Value{}
	err := s.queryEach(ctx, params, sp, func(_ int, row value.Value) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return value.Value{}, err
	}
	return value.List(rows, sp), nil
}

func (s *Statement) queryEach(ctx context.Context, params Params, sp span.Span, fn func(int, value.Value) error) error {
	// Captured up front so diagnostics never need the live cursor.
	expanded := s.sql.withText(expandSQL(s.sql.String(), params))
	args := params.args()
	start := time.Now()

	// The driver steps lazily, so a locked database shows up on the first
	// row. Retry until that row (or the end of the result) is reached.
	// Column metadata is read before the first step: database/sql closes
	// the rows as soon as Next reports the end of an empty result.
	var (
		rows     *sql.Rows
		cols     []Column
		hasFirst bool
		stepped  bool
	)
	err := retryBusy(ctx, s.conn.opts, "query", func() error {
		stepped = false
		r, err := s.stmt.QueryContext(ctx, args...)
		if err != nil {
			return err
		}
		c, err := columnsOf(r)
		if err != nil {
			r.Close()
			return err
		}
		if r.Next() {
			rows, cols, hasFirst = r, c, true
			return nil
		}
		if err := r.Err(); err != nil {
			r.Close()
			stepped = true
			return err
		}
		r.Close()
		rows, cols, hasFirst = nil, c, false
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if stepped {
			return iterateError(expanded, 0, sp, err)
		}
		return queryError(expanded, sp, err)
	}
	if !hasFirst {
		s.conn.opts.logger(ctx).Query().Debug("query finished",
			"sql", expanded.String(),
			"columns", len(cols),
			"rows", 0,
			"duration", time.Since(start).String(),
		)
		return nil
	}
	defer rows.Close()

	i := 0
	for ok := hasFirst; ok; ok = rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := readRow(rows, cols, expanded, sp)
		if err != nil {
			return err
		}
		if err := fn(i, row); err != nil {
			return err
		}
		i++
	}
	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return iterateError(expanded, i, sp, err)
	}

	s.conn.opts.logger(ctx).Query().Debug("query finished",
		"sql", expanded.String(),
		"rows", i,
		"duration", time.Since(start).String(),
	)
	return nil
}
