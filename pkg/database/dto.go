package database

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/sqlite"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// nodeDTO is the serialized form of a node. It never carries the live
// connection; decoding reopens one from the storage descriptor.
type nodeDTO struct {
	Storage sqlite.Storage       `json:"storage"`
	Schema  *sqlite.DatabaseName `json:"schema,omitempty"`
	Table   *sqlite.TableName    `json:"table,omitempty"`
}

func init() {
	value.RegisterCustom(SystemTypeName, value.CustomCodec{Marshal: marshalNode, Unmarshal: unmarshalNode})
	value.RegisterCustom(SchemaTypeName, value.CustomCodec{Marshal: marshalNode, Unmarshal: unmarshalNode})
	value.RegisterCustom(TableTypeName, value.CustomCodec{Marshal: marshalNode, Unmarshal: unmarshalNode})
}

func marshalNode(c value.CustomValue) ([]byte, error) {
	var d nodeDTO
	switch n := c.(type) {
	case *SystemValue:
		d.Storage = n.h.storage()
	case *SchemaValue:
		d.Storage = n.h.storage()
		d.Schema = &n.name
	case *TableValue:
		d.Storage = n.h.storage()
		d.Schema = &n.schema
		d.Table = &n.table
	default:
		return nil, errors.Newf(errors.ErrCodeSerialize, "cannot serialize %s as a database value", c.TypeName()).
			WithOp("database.marshal").Err()
	}
	return json.Marshal(d)
}

func unmarshalNode(ctx context.Context, payload []byte, s span.Span) (value.Value, error) {
	var d nodeDTO
	if err := json.Unmarshal(payload, &d); err != nil {
		return value.Value{}, errors.Wrap(err, errors.ErrCodeDeserialize, "decode database value").
			WithOp("database.unmarshal").WithSpan(s).Err()
	}
	if d.Table != nil && d.Schema == nil {
		return value.Value{}, errors.Newf(errors.ErrCodeDeserialize, "table %q without a schema", *d.Table).
			WithOp("database.unmarshal").WithSpan(s).Err()
	}

	conn, err := sqlite.OpenInternal(ctx, d.Storage, span.Here(), sqlite.WithLogger(log.FromContext(ctx)))
	if err != nil {
		return value.Value{}, err
	}
	h := newHandle(conn)

	switch {
	case d.Table != nil:
		return (&TableValue{h: h, schema: *d.Schema, table: *d.Table}).Value(s), nil
	case d.Schema != nil:
		return (&SchemaValue{h: h, name: *d.Schema}).Value(s), nil
	}
	return (&SystemValue{h: h}).Value(s), nil
}
