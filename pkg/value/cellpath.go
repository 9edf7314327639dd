package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ha1tch/nudb/pkg/span"
)

// PathMember is one step of a cell path: a column name or a row index.
type PathMember struct {
	Name     string
	Index    int
	IsIndex  bool
	Optional bool
	Span     span.Span
}

// NameMember creates a string member.
func NameMember(name string, s span.Span) PathMember {
	return PathMember{Name: name, Span: s}
}

// IndexMember creates an integer member.
func IndexMember(i int, s span.Span) PathMember {
	return PathMember{Index: i, IsIndex: true, Span: s}
}

// CellPath addresses a nested value, e.g. `main.users.0`.
type CellPath struct {
	Members []PathMember
}

// Equal compares members, ignoring spans.
func (p CellPath) Equal(o CellPath) bool {
	if len(p.Members) != len(o.Members) {
		return false
	}
	for i, m := range p.Members {
		n := o.Members[i]
		if m.Name != n.Name || m.Index != n.Index || m.IsIndex != n.IsIndex || m.Optional != n.Optional {
			return false
		}
	}
	return true
}

// String renders the path as dotted text. Name members that would read back
// as something else are double-quoted; optional members carry a `?` suffix.
func (p CellPath) String() string {
	parts := make([]string, len(p.Members))
	for i, m := range p.Members {
		var s string
		if m.IsIndex {
			s = strconv.Itoa(m.Index)
		} else if needsQuote(m.Name) {
			s = strconv.Quote(m.Name)
		} else {
			s = m.Name
		}
		if m.Optional {
			s += "?"
		}
		parts[i] = s
	}
	return strings.Join(parts, ".")
}

func needsQuote(name string) bool {
	if name == "" {
		return true
	}
	if _, err := strconv.Atoi(name); err == nil {
		return true
	}
	return strings.ContainsAny(name, ".?\" \t\n")
}

// ParseCellPath parses the text produced by CellPath.String.
func ParseCellPath(text string) (CellPath, error) {
	var p CellPath
	if text == "" {
		return p, nil
	}
	rest := text
	for {
		var m PathMember
		if strings.HasPrefix(rest, `"`) {
			q, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return CellPath{}, fmt.Errorf("invalid quoted member in cell path %q", text)
			}
			name, _ := strconv.Unquote(q)
			m.Name = name
			rest = rest[len(q):]
		} else {
			end := strings.IndexAny(rest, ".?")
			if end < 0 {
				end = len(rest)
			}
			tok := rest[:end]
			if tok == "" {
				return CellPath{}, fmt.Errorf("empty member in cell path %q", text)
			}
			if i, err := strconv.Atoi(tok); err == nil {
				m.Index, m.IsIndex = i, true
			} else {
				m.Name = tok
			}
			rest = rest[end:]
		}
		if strings.HasPrefix(rest, "?") {
			m.Optional = true
			rest = rest[1:]
		}
		p.Members = append(p.Members, m)
		if rest == "" {
			return p, nil
		}
		if rest[0] != '.' {
			return CellPath{}, fmt.Errorf("unexpected %q in cell path %q", rest[:1], text)
		}
		rest = rest[1:]
	}
}
