package sqlite

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// ToSQL converts v into a driver value: nil, int64, float64, string or
// []byte. With strict set, types without a plain SQL rendering are rejected.
func ToSQL(v value.Value, strict bool) (interface{}, error) {
	decl, err := DeclTypeOf(v)
	if err != nil {
		return nil, err
	}
	if _, ok := decl.AsString(strict); !ok {
		return nil, unsupportedError(v)
	}

	switch decl {
	case DeclBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b), nil
	case DeclInt:
		i, _ := v.AsInt()
		return i, nil
	case DeclFloat:
		f, _ := v.AsFloat()
		return f, nil
	case DeclString:
		s, _ := v.AsString()
		return s, nil
	case DeclBinary:
		b, _ := v.AsBinary()
		return b, nil
	case DeclNothing:
		return nil, nil
	case DeclGlob:
		pattern, noExpand, _ := v.AsGlob()
		return fmt.Sprintf("%t:%s", noExpand, pattern), nil
	case DeclFilesize:
		n, _ := v.AsFilesize()
		return n, nil
	case DeclDuration:
		n, _ := v.AsDuration()
		return n, nil
	case DeclDate:
		t, _ := v.AsDate()
		return t.Format(time.RFC3339Nano), nil
	case DeclCellPath:
		p, _ := v.AsCellPath()
		return p.String(), nil
	case DeclRecord, DeclList:
		data, err := value.ToJSON(v)
		if err != nil {
			var unsupported *value.UnsupportedJSONError
			if stderrors.As(err, &unsupported) {
				return nil, errors.Wrapf(err, errors.ErrCodeUnsupported,
					"values of type %s cannot be stored in a database", unsupported.Kind).
					WithSpan(v.Span()).Err()
			}
			return nil, errors.Wrap(err, errors.ErrCodeUnsupported, "cannot encode value as json").
				WithSpan(v.Span()).Err()
		}
		if !utf8.Valid(data) {
			return nil, errors.New(errors.ErrCodeFromUtf8, "encoded json is not valid utf-8").
				WithSpan(v.Span()).Err()
		}
		return string(data), nil
	}
	return nil, unsupportedError(v)
}

// FromSQL converts a driver value back into a Value, guided by the column's
// declared type.
func FromSQL(raw interface{}, decl DeclType, s span.Span) (value.Value, error) {
	switch x := raw.(type) {
	case nil:
		return value.Nothing(s), nil

	case int64:
		switch decl {
		case DeclFilesize:
			return value.Filesize(x, s), nil
		case DeclDuration:
			return value.Duration(x, s), nil
		case DeclInt, DeclUnknown, DeclAny:
			return value.Int(x, s), nil
		}
		return value.Value{}, invalidDeclType("INTEGER", decl, s)

	case float64:
		switch decl {
		case DeclFloat, DeclUnknown, DeclAny:
			return value.Float(x, s), nil
		}
		return value.Value{}, invalidDeclType("REAL", decl, s)

	case []byte:
		switch decl {
		case DeclBinary, DeclUnknown, DeclAny:
			return value.Binary(x, s), nil
		}
		return value.Value{}, invalidDeclType("BLOB", decl, s)

	case string:
		return textFromSQL(decodeText(x), decl, s)

	// Plain DATE, DATETIME, TIMESTAMP and BOOLEAN columns are decoded by the driver.
	case time.Time:
		return value.Date(x, s), nil
	case bool:
		return value.Bool(x, s), nil
	}
	return value.Value{}, errors.Newf(errors.ErrCodeInvalidDeclType, "unexpected driver value of type %T", raw).
		WithSpan(s).Err()
}

func textFromSQL(text string, decl DeclType, s span.Span) (value.Value, error) {
	switch decl {
	case DeclString:
		return value.String(text, s), nil

	case DeclBool:
		switch text {
		case "true":
			return value.Bool(true, s), nil
		case "false":
			return value.Bool(false, s), nil
		}
		return value.Value{}, errors.NotImplemented(fmt.Sprintf("decoding %q as bool", text)).
			WithSpan(s).Err()

	case DeclGlob:
		flag, pattern, ok := strings.Cut(text, ":")
		noExpand, err := strconv.ParseBool(flag)
		if !ok || err != nil {
			return value.Value{}, decodeError(text, decl, s, err)
		}
		return value.Glob(pattern, noExpand, s), nil

	case DeclDate:
		t, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			return value.Value{}, decodeError(text, decl, s, err)
		}
		return value.Date(t, s), nil

	case DeclCellPath:
		p, err := value.ParseCellPath(text)
		if err != nil {
			return value.Value{}, decodeError(text, decl, s, err)
		}
		return value.CellPathOf(p, s), nil
	}

	v, err := value.FromJSON([]byte(text), s)
	switch {
	case err == nil:
		return v, nil
	case err == value.ErrInvalidUTF8:
		return value.Value{}, errors.Wrap(err, errors.ErrCodeFromUtf8, "text is not valid utf-8").
			WithSpan(s).Err()
	default:
		return value.String(text, s), nil
	}
}

// decodeText returns valid UTF-8. Text that is not UTF-8 is tried as UTF-16
// and otherwise decoded lossily.
func decodeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if len(s)%2 == 0 {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.String(s); err == nil && !strings.ContainsRune(out, utf8.RuneError) {
			return out
		}
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

func invalidDeclType(native string, decl DeclType, s span.Span) error {
	return errors.Newf(errors.ErrCodeInvalidDeclType, "cannot read %s storage value as %s", native, decl).
		WithSpan(s).
		WithField("native_type", native).
		WithField("decl_type", decl.String()).
		Err()
}

func decodeError(text string, decl DeclType, s span.Span, cause error) error {
	b := errors.Newf(errors.ErrCodeInvalidDeclType, "cannot read %q as %s", text, decl).
		WithSpan(s).
		WithField("native_type", "TEXT").
		WithField("decl_type", decl.String())
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Err()
}
