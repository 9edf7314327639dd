package database

import (
	"context"

	"github.com/ha1tch/nudb/pkg/sqlite"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// TableValue is one table. It is the last node kind; following a name into
// it reads the rows and selects that column.
type TableValue struct {
	h      *handle
	schema sqlite.DatabaseName
	table  sqlite.TableName
}

func (v *TableValue) Value(s span.Span) value.Value {
	return value.Custom(v, s)
}

func (v *TableValue) Schema() sqlite.DatabaseName { return v.schema }

func (v *TableValue) Name() sqlite.TableName { return v.table }

func (v *TableValue) CloneValue(s span.Span) value.Value {
	return value.Custom(&TableValue{h: v.h.acquire(), schema: v.schema, table: v.table}, s)
}

func (v *TableValue) TypeName() string { return TableTypeName }

// ToBaseValue reads the table's rows.
func (v *TableValue) ToBaseValue(ctx context.Context, s span.Span) (value.Value, error) {
	var out value.Value
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		out, err = c.ReadTable(ctx, v.schema, v.table, s)
		return err
	})
	return out, err
}

func (v *TableValue) FollowPathString(ctx context.Context, selfSpan span.Span, column string, pathSpan span.Span) (value.Value, error) {
	rows, err := v.ToBaseValue(ctx, selfSpan)
	if err != nil {
		return value.Value{}, err
	}
	path := value.CellPath{Members: []value.PathMember{value.NameMember(column, pathSpan)}}
	return value.FollowCellPath(ctx, rows, path)
}

// Describe returns the table's columns, indexes and foreign keys.
func (v *TableValue) Describe(ctx context.Context, s span.Span) (value.Value, error) {
	var out value.Value
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		out, err = c.Describe(ctx, v.schema, v.table, s)
		return err
	})
	return out, err
}

// Close releases this node's share of the connection.
func (v *TableValue) Close() error { return v.h.release() }
