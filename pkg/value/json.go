package value

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/ha1tch/nudb/pkg/span"
)

// ErrInvalidUTF8 is returned by FromJSON when the input is not UTF-8.
var ErrInvalidUTF8 = errors.New("invalid utf-8 in json text")

// UnsupportedJSONError reports a kind with no JSON rendering.
type UnsupportedJSONError struct {
	Kind Kind
}

func (e *UnsupportedJSONError) Error() string {
	return fmt.Sprintf("cannot encode %s as json", e.Kind)
}

// ToJSON encodes v as JSON text. Record column order is preserved.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNothing:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt, KindFilesize, KindDuration:
		fmt.Fprintf(buf, "%d", v.i)
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return fmt.Errorf("cannot encode float %v as json", v.f)
		}
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
		// Integral floats keep a fraction so they decode as Float.
		if !bytes.ContainsAny(b, ".eE") {
			buf.WriteString(".0")
		}
	case KindString, KindGlob:
		return writeJSONString(buf, v.s)
	case KindDate:
		return writeJSONString(buf, v.t.Format(time.RFC3339Nano))
	case KindCellPath:
		return writeJSONString(buf, v.path.String())
	case KindBinary:
		buf.WriteByte('[')
		for i, b := range v.bin {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, "%d", b)
		}
		buf.WriteByte(']')
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		buf.WriteByte('{')
		var err error
		first := true
		v.rec.Each(func(col string, item Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err = writeJSONString(buf, col); err != nil {
				return false
			}
			buf.WriteByte(':')
			err = writeJSON(buf, item)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return &UnsupportedJSONError{Kind: v.kind}
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// FromJSON decodes JSON text into a Value, keeping object key order.
// Integers become Int, other numbers Float. Any error other than
// ErrInvalidUTF8 means the text is not well-formed JSON.
func FromJSON(data []byte, s span.Span) (Value, error) {
	if !utf8.Valid(data) {
		return Value{}, ErrInvalidUTF8
	}
	if !json.Valid(data) {
		return Value{}, errors.New("invalid json text")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec, s)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("trailing data after json value")
	}
	return v, nil
}

func readJSON(dec *json.Decoder, s span.Span) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Nothing(s), nil
	case bool:
		return Bool(t, s), nil
	case string:
		return String(t, s), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i, s), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f, s), nil
	case json.Delim:
		switch t {
		case '[':
			vals := []Value{}
			for dec.More() {
				item, err := readJSON(dec, s)
				if err != nil {
					return Value{}, err
				}
				vals = append(vals, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(vals, s), nil
		case '{':
			rec := NewRecord()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", kt)
				}
				item, err := readJSON(dec, s)
				if err != nil {
					return Value{}, err
				}
				rec.Push(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return RecordOf(rec, s), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected json token %v", tok)
}
