package sqlite

import (
	"strings"
)

// URI is a SQLite connection URI. The raw path is kept next to the encoded
// form because backup and display need a plain filesystem path.
type URI struct {
	raw     string
	encoded string
}

// Param is one URI query parameter.
type Param struct {
	Key   string
	Value string
}

// NewURI builds `scheme:path?k=v&...` with every component percent-encoded.
func NewURI(scheme, path string, params ...Param) URI {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteByte(':')
	b.WriteString(percentEncode(path, true))
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(percentEncode(p.Key, false))
		b.WriteByte('=')
		b.WriteString(percentEncode(p.Value, false))
	}
	return URI{raw: path, encoded: b.String()}
}

// rawURI is used for fixed connection strings that are not URIs, like ":memory:".
func rawURI(s string) URI {
	return URI{raw: s, encoded: s}
}

// Path returns the unencoded path component.
func (u URI) Path() string { return u.raw }

func (u URI) String() string { return u.encoded }

const upperhex = "0123456789ABCDEF"

// percentEncode escapes every byte outside the RFC 3986 unreserved set.
// Slashes are kept in paths.
func percentEncode(s string, path bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (path && c == '/') {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
