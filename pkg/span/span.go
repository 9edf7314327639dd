// Package span provides source attribution primitives for nudb.
//
// A Span points into user-supplied source text and is used for diagnostics
// that should highlight what the user wrote. A Location records the internal
// call site that generated a value, for failures that cannot be blamed on
// user input.
package span

import (
	"fmt"
	"runtime"
	"strings"
)

// Span is a half-open byte range [Start, End) into user source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// New creates a span covering [start, end).
func New(start, end int) Span {
	return Span{Start: start, End: end}
}

// Unknown is used when no source position is available.
var Unknown = Span{}

// IsUnknown reports whether the span carries no position.
func (s Span) IsUnknown() bool {
	return s.Start == 0 && s.End == 0
}

// Merge returns the smallest span covering both s and o.
func (s Span) Merge(o Span) Span {
	if s.IsUnknown() {
		return o
	}
	if o.IsUnknown() {
		return s
	}
	return Span{Start: min(s.Start, o.Start), End: max(s.End, o.End)}
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Location is an internal call site.
type Location struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
}

// Here returns the location of its caller.
func Here() Location {
	return caller(2)
}

// Caller returns the location skip frames above the caller of Caller.
func Caller(skip int) Location {
	return caller(skip + 2)
}

func caller(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Location{File: "unknown"}
	}

	// Trim to package-relative path
	if idx := strings.LastIndex(file, "/pkg/"); idx >= 0 {
		file = file[idx+1:]
	}

	loc := Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}
