// Package value provides the dynamic value model that flows through a nudb
// pipeline.
//
// A Value is a tagged union over seventeen kinds. Every instance carries the
// span of the source that produced it. Database handles enter the model as
// Custom values implementing CustomValue.
package value

import (
	"bytes"
	"time"

	"github.com/ha1tch/nudb/pkg/span"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNothing Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindGlob
	KindFilesize
	KindDuration
	KindDate
	KindRecord
	KindList
	KindBinary
	KindCellPath
	KindRange
	KindClosure
	KindError
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindNothing:
		return "nothing"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindGlob:
		return "glob"
	case KindFilesize:
		return "filesize"
	case KindDuration:
		return "duration"
	case KindDate:
		return "date"
	case KindRecord:
		return "record"
	case KindList:
		return "list"
	case KindBinary:
		return "binary"
	case KindCellPath:
		return "cell-path"
	case KindRange:
		return "range"
	case KindClosure:
		return "closure"
	case KindError:
		return "error"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Range is an integer range.
type Range struct {
	From      int64
	To        int64
	Step      int64
	Inclusive bool
}

// Closure references a compiled block in the host engine.
type Closure struct {
	BlockID int
}

// Value is a dynamically typed pipeline value.
type Value struct {
	kind Kind
	span span.Span

	b        bool
	i        int64 // int, filesize bytes, duration nanoseconds
	f        float64
	s        string // string, glob pattern
	noExpand bool
	t        time.Time
	rec      *Record
	list     []Value
	bin      []byte
	path     CellPath
	rng      *Range
	closure  *Closure
	err      error
	custom   CustomValue
}

func Nothing(s span.Span) Value { return Value{kind: KindNothing, span: s} }

func Bool(b bool, s span.Span) Value { return Value{kind: KindBool, b: b, span: s} }

func Int(i int64, s span.Span) Value { return Value{kind: KindInt, i: i, span: s} }

func Float(f float64, s span.Span) Value { return Value{kind: KindFloat, f: f, span: s} }

func String(str string, s span.Span) Value { return Value{kind: KindString, s: str, span: s} }

// Glob creates a glob pattern. noExpand marks patterns that must be used literally.
func Glob(pattern string, noExpand bool, s span.Span) Value {
	return Value{kind: KindGlob, s: pattern, noExpand: noExpand, span: s}
}

// Filesize creates a filesize of n bytes.
func Filesize(n int64, s span.Span) Value { return Value{kind: KindFilesize, i: n, span: s} }

// Duration creates a duration of ns nanoseconds.
func Duration(ns int64, s span.Span) Value { return Value{kind: KindDuration, i: ns, span: s} }

func Date(t time.Time, s span.Span) Value { return Value{kind: KindDate, t: t, span: s} }

// RecordOf wraps r. A nil record is treated as empty.
func RecordOf(r *Record, s span.Span) Value {
	if r == nil {
		r = NewRecord()
	}
	return Value{kind: KindRecord, rec: r, span: s}
}

func List(vals []Value, s span.Span) Value {
	if vals == nil {
		vals = []Value{}
	}
	return Value{kind: KindList, list: vals, span: s}
}

func Binary(b []byte, s span.Span) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{kind: KindBinary, bin: b, span: s}
}

func CellPathOf(p CellPath, s span.Span) Value { return Value{kind: KindCellPath, path: p, span: s} }

func RangeOf(r Range, s span.Span) Value { return Value{kind: KindRange, rng: &r, span: s} }

func ClosureOf(c Closure, s span.Span) Value { return Value{kind: KindClosure, closure: &c, span: s} }

func Error(err error, s span.Span) Value { return Value{kind: KindError, err: err, span: s} }

func Custom(c CustomValue, s span.Span) Value { return Value{kind: KindCustom, custom: c, span: s} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Span returns the source span of the value.
func (v Value) Span() span.Span { return v.span }

// WithSpan returns a copy of v carrying s. Nested values keep their spans.
func (v Value) WithSpan(s span.Span) Value {
	v.span = s
	return v
}

// TypeName returns the user-facing type name. Custom values report their own.
func (v Value) TypeName() string {
	if v.kind == KindCustom && v.custom != nil {
		return v.custom.TypeName()
	}
	return v.kind.String()
}

func (v Value) IsNothing() bool { return v.kind == KindNothing }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsGlob returns the pattern and its no-expand flag.
func (v Value) AsGlob() (string, bool, bool) { return v.s, v.noExpand, v.kind == KindGlob }

func (v Value) AsFilesize() (int64, bool) { return v.i, v.kind == KindFilesize }

func (v Value) AsDuration() (int64, bool) { return v.i, v.kind == KindDuration }

func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

func (v Value) AsRecord() (*Record, bool) { return v.rec, v.kind == KindRecord }

func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

func (v Value) AsBinary() ([]byte, bool) { return v.bin, v.kind == KindBinary }

func (v Value) AsCellPath() (CellPath, bool) { return v.path, v.kind == KindCellPath }

func (v Value) AsRange() (Range, bool) {
	if v.rng == nil {
		return Range{}, false
	}
	return *v.rng, v.kind == KindRange
}

func (v Value) AsError() (error, bool) { return v.err, v.kind == KindError }

func (v Value) AsCustom() (CustomValue, bool) { return v.custom, v.kind == KindCustom }

// Equal compares two values structurally, ignoring spans. Custom values are
// equal when they are the same instance.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNothing:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt, KindFilesize, KindDuration:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindGlob:
		return v.s == o.s && v.noExpand == o.noExpand
	case KindDate:
		return v.t.Equal(o.t)
	case KindRecord:
		return v.rec.Equal(o.rec)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	case KindCellPath:
		return v.path.Equal(o.path)
	case KindRange:
		return *v.rng == *o.rng
	case KindClosure:
		return *v.closure == *o.closure
	case KindError:
		return v.err == o.err
	case KindCustom:
		return v.custom == o.custom
	}
	return false
}
