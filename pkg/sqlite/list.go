package sqlite

import (
	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// DatabaseListEntry is one row of `PRAGMA database_list`.
type DatabaseListEntry struct {
	Seq  int64  `json:"seq"`
	Name string `json:"name"`
	File string `json:"file"`
}

// DatabaseList is the set of schemas attached to a connection.
type DatabaseList []DatabaseListEntry

// HasDatabase reports whether a schema called name is attached.
func (l DatabaseList) HasDatabase(name string) bool {
	for _, e := range l {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Names returns the schema names in order.
func (l DatabaseList) Names() []string {
	names := make([]string, len(l))
	for i, e := range l {
		names[i] = e.Name
	}
	return names
}

// ToValue renders the list as a table.
func (l DatabaseList) ToValue(s span.Span) value.Value {
	rows := make([]value.Value, len(l))
	for i, e := range l {
		rec := value.NewRecord()
		rec.Push("seq", value.Int(e.Seq, s))
		rec.Push("name", value.String(e.Name, s))
		rec.Push("file", value.String(e.File, s))
		rows[i] = value.RecordOf(rec, s)
	}
	return value.List(rows, s)
}

// databaseListFromValue reads the result of `PRAGMA database_list`.
func databaseListFromValue(v value.Value) (DatabaseList, error) {
	rows, ok := v.AsList()
	if !ok {
		return nil, databaseListError("expected list, got %s", v.TypeName())
	}
	list := make(DatabaseList, 0, len(rows))
	for _, row := range rows {
		rec, ok := row.AsRecord()
		if !ok {
			return nil, databaseListError("expected record, got %s", row.TypeName())
		}
		var e DatabaseListEntry
		if seq, ok := rec.Get("seq"); ok {
			e.Seq, _ = seq.AsInt()
		}
		name, ok := rec.Get("name")
		if !ok {
			return nil, databaseListError("missing name column")
		}
		if e.Name, ok = catalogueText(name); !ok {
			return nil, databaseListError("name is %s, not string", name.TypeName())
		}
		if file, ok := rec.Get("file"); ok {
			e.File, _ = catalogueText(file)
		}
		list = append(list, e)
	}
	return list, nil
}

func databaseListError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeQueryStatement, format, args...).
		WithOp("sqlite.database_list").
		WithLocation(span.Caller(1)).
		Err()
}

// catalogueText recovers the text of an untyped catalogue cell. Such cells
// go through JSON decoding, so a name like `123` arrives as an int.
func catalogueText(v value.Value) (string, bool) {
	if s, ok := v.AsString(); ok {
		return s, true
	}
	switch v.Kind() {
	case value.KindInt, value.KindFloat, value.KindBool, value.KindNothing:
		data, err := value.ToJSON(v)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
	return "", false
}
