package database

import (
	"context"

	"github.com/ha1tch/nudb/pkg/sqlite"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// Type names reported by the three node kinds.
const (
	SystemTypeName = "database-system"
	SchemaTypeName = "database"
	TableTypeName  = "database-table"
)

// SystemValue is every schema attached to a connection.
type SystemValue struct {
	h *handle
}

// NewSystem takes ownership of c.
func NewSystem(c *sqlite.Connection) *SystemValue {
	return &SystemValue{h: newHandle(c)}
}

// FromValue returns v if it already is a system value, and otherwise opens
// it as serialized database bytes.
func FromValue(ctx context.Context, v value.Value, options ...sqlite.Option) (*SystemValue, error) {
	if c, ok := v.AsCustom(); ok {
		if sys, ok := c.(*SystemValue); ok {
			return &SystemValue{h: sys.h.acquire()}, nil
		}
	}
	conn, err := sqlite.OpenFromValue(ctx, v, v.Span(), options...)
	if err != nil {
		return nil, err
	}
	return NewSystem(conn), nil
}

// FromPipeline opens pipeline input, read-only in place when it came from a
// file.
func FromPipeline(ctx context.Context, input value.PipelineData, s span.Span, options ...sqlite.Option) (*SystemValue, error) {
	conn, err := sqlite.OpenFromPipeline(ctx, input, s, options...)
	if err != nil {
		return nil, err
	}
	return NewSystem(conn), nil
}

// Value wraps the node as a custom value.
func (v *SystemValue) Value(s span.Span) value.Value {
	return value.Custom(v, s)
}

func (v *SystemValue) CloneValue(s span.Span) value.Value {
	return value.Custom(&SystemValue{h: v.h.acquire()}, s)
}

func (v *SystemValue) TypeName() string { return SystemTypeName }

// ToBaseValue reads every table of every schema.
func (v *SystemValue) ToBaseValue(ctx context.Context, s span.Span) (value.Value, error) {
	var out value.Value
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		out, err = c.ReadAll(ctx, s)
		return err
	})
	return out, err
}

// FollowPathString narrows to the schema called column.
func (v *SystemValue) FollowPathString(ctx context.Context, selfSpan span.Span, column string, pathSpan span.Span) (value.Value, error) {
	schema, err := v.Schema(ctx, sqlite.UserDatabaseName(column, pathSpan), selfSpan)
	if err != nil {
		return value.Value{}, err
	}
	v.h.logger(ctx).Value().Debug("followed path", "from", SystemTypeName, "database", column)
	return schema.Value(selfSpan), nil
}

// Schema validates name against the attached schemas. "main" always exists
// and is accepted without a query.
func (v *SystemValue) Schema(ctx context.Context, name sqlite.DatabaseName, s span.Span) (*SchemaValue, error) {
	if name.String() == sqlite.MainName {
		return &SchemaValue{h: v.h.acquire(), name: name}, nil
	}

	var list sqlite.DatabaseList
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		list, err = c.ListDatabases(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !list.HasDatabase(name.String()) {
		return nil, databaseNotFound(name, list, s)
	}
	return &SchemaValue{h: v.h.acquire(), name: name}, nil
}

// Storage returns the descriptor of the current connection.
func (v *SystemValue) Storage() sqlite.Storage { return v.h.storage() }

// Promote turns a read-only file connection into a writable memory copy.
// Every node sharing the connection sees the promoted one.
func (v *SystemValue) Promote(ctx context.Context) error {
	return v.h.promote(ctx)
}

// Query runs q against the shared connection.
func (v *SystemValue) Query(ctx context.Context, q sqlite.SQLText, params sqlite.Params, s span.Span) (value.Value, error) {
	var out value.Value
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		out, err = c.Query(ctx, q, params, s)
		return err
	})
	return out, err
}

// Execute runs q against the shared connection and returns the rows changed.
func (v *SystemValue) Execute(ctx context.Context, q sqlite.SQLText, params sqlite.Params, s span.Span) (int64, error) {
	var n int64
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		n, err = c.Execute(ctx, q, params, s)
		return err
	})
	return n, err
}

// Backup writes the main schema to path.
func (v *SystemValue) Backup(ctx context.Context, path string, s span.Span) error {
	return v.h.with(func(c *sqlite.Connection) error {
		return c.Backup(ctx, path, s)
	})
}

// Close releases this node's share of the connection.
func (v *SystemValue) Close() error { return v.h.release() }
