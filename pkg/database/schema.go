package database

import (
	"context"

	"github.com/ha1tch/nudb/pkg/sqlite"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// SchemaValue is one attached schema.
type SchemaValue struct {
	h    *handle
	name sqlite.DatabaseName
}

func (v *SchemaValue) Value(s span.Span) value.Value {
	return value.Custom(v, s)
}

// Name returns the schema name.
func (v *SchemaValue) Name() sqlite.DatabaseName { return v.name }

func (v *SchemaValue) CloneValue(s span.Span) value.Value {
	return value.Custom(&SchemaValue{h: v.h.acquire(), name: v.name}, s)
}

func (v *SchemaValue) TypeName() string { return SchemaTypeName }

// ToBaseValue reads every table in the schema.
func (v *SchemaValue) ToBaseValue(ctx context.Context, s span.Span) (value.Value, error) {
	var out value.Value
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		out, err = c.ReadSchema(ctx, v.name, s)
		return err
	})
	return out, err
}

// FollowPathString narrows to the table called column.
func (v *SchemaValue) FollowPathString(ctx context.Context, selfSpan span.Span, column string, pathSpan span.Span) (value.Value, error) {
	table, err := v.Table(ctx, sqlite.UserTableName(column, pathSpan), selfSpan)
	if err != nil {
		return value.Value{}, err
	}
	v.h.logger(ctx).Value().Debug("followed path",
		"from", SchemaTypeName,
		"database", v.name.String(),
		"table", column,
	)
	return table.Value(selfSpan), nil
}

// Table validates name against the schema's tables.
func (v *SchemaValue) Table(ctx context.Context, name sqlite.TableName, s span.Span) (*TableValue, error) {
	var tables []sqlite.TableName
	err := v.h.with(func(c *sqlite.Connection) error {
		var err error
		tables, err = c.ListTables(ctx, v.name, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Equal(name) {
			return &TableValue{h: v.h.acquire(), schema: v.name, table: name}, nil
		}
	}
	return nil, tableNotFound(v.name, name, tables, s)
}

// Close releases this node's share of the connection.
func (v *SchemaValue) Close() error { return v.h.release() }
