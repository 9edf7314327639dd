package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// NamedParam is a bound parameter whose name includes its sigil (`:id`).
type NamedParam struct {
	Name  string
	Value interface{}
}

// Params are statement parameters, either positional or named.
type Params struct {
	positional []interface{}
	named      []NamedParam
}

// NoParams binds nothing.
func NoParams() Params { return Params{} }

// PositionalParams converts vals for binding to `?` placeholders.
func PositionalParams(vals []value.Value) (Params, error) {
	p := Params{positional: make([]interface{}, 0, len(vals))}
	for _, v := range vals {
		raw, err := ToSQL(v, false)
		if err != nil {
			return Params{}, err
		}
		p.positional = append(p.positional, raw)
	}
	return p, nil
}

// NamedParams converts a record into named parameters. Keys without a
// `:`, `@` or `$` prefix get `:`.
func NamedParams(rec *value.Record, s span.Span) (Params, error) {
	p := Params{named: make([]NamedParam, 0, rec.Len())}
	var err error
	rec.Each(func(key string, v value.Value) bool {
		name := key
		if !hasSigil(name) {
			name = ":" + name
		}
		if !validParamName(name[1:]) {
			err = errors.Newf(errors.ErrCodeInvalidParams, "invalid parameter name %q", key).
				WithSpan(s).Err()
			return false
		}
		var raw interface{}
		raw, err = ToSQL(v, false)
		if err != nil {
			return false
		}
		p.named = append(p.named, NamedParam{Name: name, Value: raw})
		return true
	})
	if err != nil {
		return Params{}, err
	}
	return p, nil
}

// ParamsFromValue accepts a list (positional), a record (named) or nothing.
func ParamsFromValue(v value.Value) (Params, error) {
	switch v.Kind() {
	case value.KindNothing:
		return NoParams(), nil
	case value.KindList:
		vals, _ := v.AsList()
		return PositionalParams(vals)
	case value.KindRecord:
		rec, _ := v.AsRecord()
		return NamedParams(rec, v.Span())
	}
	return Params{}, errors.Newf(errors.ErrCodeInvalidParams,
		"parameters must be a list or a record, not %s", v.TypeName()).
		WithSpan(v.Span()).Err()
}

func hasSigil(name string) bool {
	return strings.HasPrefix(name, ":") || strings.HasPrefix(name, "@") || strings.HasPrefix(name, "$")
}

// validParamName mirrors the names database/sql accepts for sql.Named.
func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !unicode.IsLetter(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// IsNamed reports whether the parameters bind by name.
func (p Params) IsNamed() bool { return p.named != nil }

func (p Params) Len() int { return len(p.positional) + len(p.named) }

// args returns the arguments for database/sql. The driver matches a named
// argument against `:name`, `@name` and `$name` placeholders.
func (p Params) args() []interface{} {
	if p.named != nil {
		args := make([]interface{}, len(p.named))
		for i, n := range p.named {
			args[i] = sql.Named(n.Name[1:], n.Value)
		}
		return args
	}
	return p.positional
}

func (p Params) lookupNamed(name string) (interface{}, bool) {
	for _, n := range p.named {
		if n.Name == name || n.Name[1:] == name[1:] {
			return n.Value, true
		}
	}
	return nil, false
}

// expandSQL substitutes bound values into the placeholders of text, for
// diagnostics only. Placeholders inside string literals, quoted identifiers
// and comments are left alone.
func expandSQL(text string, p Params) string {
	if p.Len() == 0 {
		return text
	}

	var b strings.Builder
	next := 0 // next anonymous `?` index
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := skipQuoted(text, i)
			b.WriteString(text[i:end])
			i = end
		case c == '-' && strings.HasPrefix(text[i:], "--"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			b.WriteString(text[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				end = len(text) - i
			} else {
				end += 4
			}
			b.WriteString(text[i : i+end])
			i += end
		case c == '?':
			j := i + 1
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			idx := next
			if j > i+1 {
				n, _ := strconv.Atoi(text[i+1 : j])
				idx = n - 1
			}
			next = idx + 1
			if !p.IsNamed() && idx >= 0 && idx < len(p.positional) {
				b.WriteString(sqlLiteral(p.positional[idx]))
			} else {
				b.WriteString(text[i:j])
			}
			i = j
		case (c == ':' || c == '@' || c == '$') && i+1 < len(text) && isIdentByte(text[i+1]):
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if v, ok := p.lookupNamed(text[i:j]); ok {
				b.WriteString(sqlLiteral(v))
			} else {
				b.WriteString(text[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func skipQuoted(text string, start int) int {
	closer := text[start]
	if closer == '[' {
		closer = ']'
	}
	for i := start + 1; i < len(text); i++ {
		if text[i] != closer {
			continue
		}
		// doubled quote is an escape
		if closer != ']' && i+1 < len(text) && text[i+1] == closer {
			i++
			continue
		}
		return i + 1
	}
	return len(text)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

// sqlLiteral renders a driver value as a SQL literal.
func sqlLiteral(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("X'%X'", x)
	}
	return fmt.Sprintf("'%v'", v)
}
