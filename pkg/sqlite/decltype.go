package sqlite

import (
	"strings"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/value"
)

// DeclType is the value type recorded in a column's declared type, so a
// stored cell can be decoded back into the type it was written from. The
// zero value means no declared type is known.
type DeclType int

const (
	DeclUnknown DeclType = iota
	DeclBool
	DeclInt
	DeclFloat
	DeclString
	DeclGlob
	DeclFilesize
	DeclDuration
	DeclDate
	DeclRecord
	DeclList
	DeclBinary
	DeclCellPath
	DeclNothing
	DeclAny
)

// declTypes is the single table behind every DeclType conversion. An empty
// strict rendering means the type has no plain SQL equivalent.
var declTypes = []struct {
	tag     DeclType
	kind    value.Kind
	lenient string
	strict  string
}{
	{DeclBool, value.KindBool, "BOOL TEXT", "TEXT"},
	{DeclInt, value.KindInt, "INT", "INT"},
	{DeclFloat, value.KindFloat, "REAL", "REAL"},
	{DeclString, value.KindString, "TEXT", "TEXT"},
	{DeclGlob, value.KindGlob, "GLOB TEXT", ""},
	{DeclFilesize, value.KindFilesize, "FILESIZE INT", ""},
	{DeclDuration, value.KindDuration, "DURATION INT", ""},
	{DeclDate, value.KindDate, "DATE TEXT", ""},
	{DeclRecord, value.KindRecord, "RECORD TEXT", "TEXT"},
	{DeclList, value.KindList, "LIST TEXT", "TEXT"},
	{DeclBinary, value.KindBinary, "BLOB", "BLOB"},
	{DeclCellPath, value.KindCellPath, "CELLPATH TEXT", ""},
	{DeclNothing, value.KindNothing, "NOTHING ANY", "ANY"},
	{DeclAny, -1, "ANY", "ANY"},
}

// AsString renders the declared type. Lenient renderings embed the type tag;
// strict ones fall back to plain SQL and report false when none exists.
func (d DeclType) AsString(strict bool) (string, bool) {
	for _, e := range declTypes {
		if e.tag != d {
			continue
		}
		if strict {
			return e.strict, e.strict != ""
		}
		return e.lenient, true
	}
	return "", false
}

// Literal renders the declared type as a SQL string literal for column
// definitions. SQLite keeps the literal's contents as the declared type, so
// renderings that are not valid type names, such as "NOTHING ANY", still
// parse.
func (d DeclType) Literal(strict bool) (string, bool) {
	s, ok := d.AsString(strict)
	if !ok {
		return "", false
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", true
}

func (d DeclType) String() string {
	if s, ok := d.AsString(false); ok {
		return s
	}
	return "UNKNOWN"
}

// ParseDeclType matches a column's declared type against the lenient
// renderings, ignoring case. Anything else yields DeclUnknown.
func ParseDeclType(s string) DeclType {
	s = strings.TrimSpace(s)
	for _, e := range declTypes {
		if strings.EqualFold(e.lenient, s) {
			return e.tag
		}
	}
	return DeclUnknown
}

// DeclTypeOf returns the declared type for v, or Unsupported for ranges,
// closures, errors and custom values.
func DeclTypeOf(v value.Value) (DeclType, error) {
	for _, e := range declTypes {
		if e.kind == v.Kind() {
			return e.tag, nil
		}
	}
	return DeclUnknown, unsupportedError(v)
}

func unsupportedError(v value.Value) error {
	return errors.Newf(errors.ErrCodeUnsupported, "values of type %s cannot be stored in a database", v.TypeName()).
		WithSpan(v.Span()).
		WithField("type", v.TypeName()).
		Err()
}
