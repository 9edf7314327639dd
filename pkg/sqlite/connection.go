// Package sqlite wraps a single SQLite connection and converts between SQL
// storage values and pipeline values.
//
// A Connection is opened from a Storage descriptor: a read-only file, a named
// shared memory database, a scratch memory database or the history database.
// Statements bind Params built from values and return rows as lists of
// records, decoding each cell by the column's declared type.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// Option configures a Connection.
type Option func(*Options)

// WithOptions replaces all options.
func WithOptions(o Options) Option {
	return func(opts *Options) { *opts = o }
}

// WithBusyRetry sets the retry interval and limit for locked databases.
func WithBusyRetry(interval time.Duration, maxAttempts int) Option {
	return func(opts *Options) {
		opts.BusyInterval = interval
		opts.BusyMaxAttempts = maxAttempts
	}
}

// WithLogger sets the logger used by the connection.
func WithLogger(l *log.Logger) Option {
	return func(opts *Options) { opts.Logger = l }
}

func buildOptions(options []Option) Options {
	opts := DefaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return opts.withDefaults()
}

// Connection owns one native database handle. Operations are serialized.
type Connection struct {
	mu      sync.Mutex
	db      *sql.DB
	conn    *sql.Conn
	storage Storage
	opts    Options
	closed  bool
}

func openRaw(ctx context.Context, storage Storage, opts Options) (*Connection, error) {
	db, err := sql.Open("sqlite3", storage.dsn())
	if err != nil {
		return nil, err
	}
	// One handle per Connection; the pool must never open a second one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	var conn *sql.Conn
	err = retryBusy(ctx, opts, "open", func() error {
		c, err := db.Conn(ctx)
		if err != nil {
			return err
		}
		if err := c.PingContext(ctx); err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	opts.logger(ctx).Storage().Info("opened database",
		"storage", storage.String(),
		"kind", storage.Kind.String(),
	)

	return &Connection{db: db, conn: conn, storage: storage, opts: opts}, nil
}

// Open opens storage on behalf of user code at span s.
func Open(ctx context.Context, storage Storage, s span.Span, options ...Option) (*Connection, error) {
	c, err := openRaw(ctx, storage, buildOptions(options))
	if err != nil {
		return nil, openError(storage, s, err)
	}
	return c, nil
}

// OpenInternal opens storage for a caller inside this module. Failures are
// attributed to loc rather than to user source.
func OpenInternal(ctx context.Context, storage Storage, loc span.Location, options ...Option) (*Connection, error) {
	c, err := openRaw(ctx, storage, buildOptions(options))
	if err != nil {
		return nil, openInternalError(storage, loc, err)
	}
	return c, nil
}

// OpenFromBytes loads a serialized database into a fresh writable memory
// database named after the bytes. callSpan is the call that asked for it and
// valueSpan the value the bytes came from.
//
// The bytes are deserialized into a private scratch connection and then
// copied into the named database, so the result can grow and can be reopened
// by name.
func OpenFromBytes(ctx context.Context, data []byte, callSpan, valueSpan span.Span, options ...Option) (*Connection, error) {
	storage := NewWritableMemory(data, callSpan)
	c, err := Open(ctx, storage, callSpan, options...)
	if err != nil {
		return nil, err
	}

	scratch, err := openRaw(ctx, NewInMemory(callSpan), c.opts)
	if err != nil {
		c.Close()
		return nil, deserializeError(callSpan, valueSpan, err)
	}
	defer scratch.Close()

	err = withRaw(ctx, scratch.conn, func(sc *sqlite3.SQLiteConn) error {
		// The driver copies data, so the caller keeps ownership.
		return sc.Deserialize(data, MainName)
	})
	if err == nil {
		err = backupConn(ctx, c.conn, scratch.conn, c.opts)
	}
	if err != nil {
		c.Close()
		return nil, deserializeError(callSpan, valueSpan, err)
	}

	c.opts.logger(ctx).Storage().Info("deserialized database",
		"storage", storage.String(),
		"bytes", len(data),
	)
	return c, nil
}

// OpenFromValue opens a binary value as a database.
func OpenFromValue(ctx context.Context, v value.Value, s span.Span, options ...Option) (*Connection, error) {
	data, ok := v.AsBinary()
	if !ok {
		str, isString := v.AsString()
		if !isString {
			return nil, errors.Newf(errors.ErrCodeDeserialize, "expected binary input, got %s", v.TypeName()).
				WithSpan(v.Span()).Err()
		}
		data = []byte(str)
	}
	return OpenFromBytes(ctx, data, s, v.Span(), options...)
}

// OpenFromPipeline opens pipeline input. Input known to come from a file is
// opened read-only in place; anything else is read as serialized bytes.
func OpenFromPipeline(ctx context.Context, input value.PipelineData, s span.Span, options ...Option) (*Connection, error) {
	if path, ok := input.SourcePath(); ok {
		return Open(ctx, NewReadonlyFile(path, s), s, options...)
	}

	v, err := input.IntoValue()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDeserialize, "could not read pipeline input").
			WithSpan(s).Err()
	}
	return OpenFromValue(ctx, v, s, options...)
}

// Storage returns the descriptor the connection was opened from.
func (c *Connection) Storage() Storage {
	return c.storage
}

// Options returns the options the connection was opened with.
func (c *Connection) Options() Options {
	return c.opts
}

// Close releases the native handle. Closing twice is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// Promote copies a read-only file database into a writable memory database
// named after the file and closes the receiver. Any other storage is
// returned unchanged.
func (c *Connection) Promote(ctx context.Context) (*Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storage.Kind != StorageReadonlyFile {
		return c, nil
	}

	path := c.storage.Path()
	sp := c.storage.Span
	target := NewWritableMemory(path, sp)

	next, err := openRaw(ctx, target, c.opts)
	if err != nil {
		return nil, openError(target, sp, err)
	}

	if err := backupConn(ctx, next.conn, c.conn, c.opts); err != nil {
		next.Close()
		return nil, promoteError(path, sp, err)
	}

	c.opts.logger(ctx).Storage().Info("promoted database into memory",
		"path", path,
		"storage", target.String(),
	)

	c.closeLocked()
	return next, nil
}

// Backup writes the main schema to a database file at path.
func (c *Connection) Backup(ctx context.Context, path string, s span.Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dest := NewURI("file", path, Param{"mode", "rwc"})
	db, err := sql.Open("sqlite3", dest.String())
	if err != nil {
		return backupError(path, s, err)
	}
	defer db.Close()

	destConn, err := db.Conn(ctx)
	if err != nil {
		return backupError(path, s, err)
	}
	defer destConn.Close()

	if err := backupConn(ctx, destConn, c.conn, c.opts); err != nil {
		return backupError(path, s, err)
	}

	c.opts.logger(ctx).Storage().Info("backed up database", "path", path)
	return nil
}

// Serialize returns the main schema in SQLite's native byte format.
func (c *Connection) Serialize(ctx context.Context, s span.Span) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := withRaw(ctx, c.conn, func(sc *sqlite3.SQLiteConn) error {
		var err error
		data, err = sc.Serialize(MainName)
		return err
	})
	if err != nil {
		return nil, serializeError(s, err)
	}
	return data, nil
}

// Prepare compiles q.
func (c *Connection) Prepare(ctx context.Context, q SQLText, s span.Span) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepare(ctx, q, s)
}

func (c *Connection) prepare(ctx context.Context, text SQLText, s span.Span) (*Statement, error) {
	if c.closed {
		return nil, prepareError(text, s, sql.ErrConnDone)
	}

	var stmt *sql.Stmt
	err := retryBusy(ctx, c.opts, "prepare", func() error {
		var err error
		stmt, err = c.conn.PrepareContext(ctx, text.String())
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, prepareError(text, s, err)
	}
	return &Statement{conn: c, stmt: stmt, sql: text}, nil
}

// Execute prepares and runs q, returning the number of rows changed.
func (c *Connection) Execute(ctx context.Context, q SQLText, params Params, s span.Span) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execute(ctx, q, params, s)
}

func (c *Connection) execute(ctx context.Context, q SQLText, params Params, s span.Span) (int64, error) {
	stmt, err := c.prepare(ctx, q, s)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	return stmt.execute(ctx, params, s)
}

// Query prepares and runs q, returning every row as a list of records.
func (c *Connection) Query(ctx context.Context, q SQLText, params Params, s span.Span) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query(ctx, q, params, s)
}

func (c *Connection) query(ctx context.Context, q SQLText, params Params, s span.Span) (value.Value, error) {
	stmt, err := c.prepare(ctx, q, s)
	if err != nil {
		return value.Value{}, err
	}
	defer stmt.Close()
	return stmt.query(ctx, params, s)
}

// ListDatabases returns the attached schemas.
func (c *Connection) ListDatabases(ctx context.Context, s span.Span) (DatabaseList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listDatabases(ctx, s)
}

func (c *Connection) listDatabases(ctx context.Context, s span.Span) (DatabaseList, error) {
	q := InternalSQL("PRAGMA database_list", span.Here())
	v, err := c.query(ctx, q, NoParams(), s)
	if err != nil {
		return nil, err
	}
	list, err := databaseListFromValue(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeQueryStatement, "unexpected database list").
			WithLocation(span.Here()).Err()
	}
	return list, nil
}

// ListTables returns the tables of schema.
func (c *Connection) ListTables(ctx context.Context, schema DatabaseName, s span.Span) ([]TableName, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listTables(ctx, schema, s)
}

func (c *Connection) listTables(ctx context.Context, schema DatabaseName, s span.Span) ([]TableName, error) {
	q := InternalSQL(
		fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type='table'", schema.Quoted()),
		span.Here(),
	)
	v, err := c.query(ctx, q, NoParams(), s)
	if err != nil {
		return nil, err
	}

	rows, _ := v.AsList()
	tables := make([]TableName, 0, len(rows))
	for _, row := range rows {
		rec, _ := row.AsRecord()
		cell, _ := rec.Get("name")
		name, ok := cell.AsString()
		if !ok {
			return nil, errors.Newf(errors.ErrCodeQueryStatement, "table name is %s, not string", cell.TypeName()).
				WithLocation(span.Here()).Err()
		}
		tables = append(tables, UserTableName(name, s))
	}
	return tables, nil
}

// ReadTable returns every row of schema.table.
func (c *Connection) ReadTable(ctx context.Context, schema DatabaseName, table TableName, s span.Span) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readTable(ctx, schema, table, s)
}

func (c *Connection) readTable(ctx context.Context, schema DatabaseName, table TableName, s span.Span) (value.Value, error) {
	q := InternalSQL(fmt.Sprintf("SELECT * FROM %s.%s", schema.Quoted(), table.Quoted()), span.Here())
	return c.query(ctx, q, NoParams(), s)
}

// ReadSchema returns a record mapping each table of schema to its rows.
func (c *Connection) ReadSchema(ctx context.Context, schema DatabaseName, s span.Span) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readSchema(ctx, schema, s)
}

func (c *Connection) readSchema(ctx context.Context, schema DatabaseName, s span.Span) (value.Value, error) {
	tables, err := c.listTables(ctx, schema, s)
	if err != nil {
		return value.Value{}, err
	}

	rec := value.NewRecord()
	for _, table := range tables {
		rows, err := c.readTable(ctx, schema, table, s)
		if err != nil {
			return value.Value{}, err
		}
		rec.Push(table.String(), rows)
	}
	return value.RecordOf(rec, s), nil
}

// ReadAll returns a record mapping each attached schema to ReadSchema.
func (c *Connection) ReadAll(ctx context.Context, s span.Span) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readAll(ctx, s)
}

func (c *Connection) readAll(ctx context.Context, s span.Span) (value.Value, error) {
	list, err := c.listDatabases(ctx, s)
	if err != nil {
		return value.Value{}, err
	}

	rec := value.NewRecord()
	for _, entry := range list {
		schema := InternalDatabaseName(entry.Name, span.Here())
		v, err := c.readSchema(ctx, schema, s)
		if err != nil {
			return value.Value{}, err
		}
		rec.Push(entry.Name, v)
	}
	return value.RecordOf(rec, s), nil
}

// withRaw runs fn with the driver connection behind conn.
func withRaw(ctx context.Context, conn *sql.Conn, fn func(*sqlite3.SQLiteConn) error) error {
	return conn.Raw(func(driverConn interface{}) error {
		sc, ok := driverConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return fn(sc)
	})
}

// backupConn copies the main schema of src into the main schema of dest.
func backupConn(ctx context.Context, dest, src *sql.Conn, opts Options) error {
	return withRaw(ctx, dest, func(destConn *sqlite3.SQLiteConn) error {
		return withRaw(ctx, src, func(srcConn *sqlite3.SQLiteConn) error {
			bk, err := destConn.Backup(MainName, srcConn, MainName)
			if err != nil {
				return err
			}
			for {
				done, err := bk.Step(-1)
				if err != nil {
					bk.Finish()
					return err
				}
				if done {
					break
				}
				// Source or destination locked; wait and try again.
				select {
				case <-ctx.Done():
					bk.Finish()
					return ctx.Err()
				case <-time.After(opts.BusyInterval):
				}
			}
			return bk.Finish()
		})
	})
}
