package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ha1tch/nudb/pkg/span"
)

// Diagnostic is the user-facing rendering of an error: a headline, a
// message, an optional span into user source and nested diagnostics.
type Diagnostic struct {
	Headline string       `json:"headline"`
	Message  string       `json:"message"`
	Span     *span.Span   `json:"span,omitempty"`
	Inner    []Diagnostic `json:"inner,omitempty"`
}

// headlines maps codes to the short title shown to users.
var headlines = map[Code]string{
	ErrCodeConfigInvalid:          "Invalid configuration",
	ErrCodeConfigMissing:          "Missing configuration",
	ErrCodeConfigParse:            "Failed to parse configuration",
	ErrCodeConfigValidation:       "Invalid configuration",
	ErrCodeExecCancelled:          "Operation interrupted",
	ErrCodeOpenConnection:         "Failed to open database connection",
	ErrCodeOpenInternalConnection: "Failed to open internal database connection",
	ErrCodePromote:                "Failed to promote database into memory",
	ErrCodeDeserialize:            "Failed to load database from bytes",
	ErrCodeSerialize:              "Failed to serialize database",
	ErrCodeBackup:                 "Failed to back up database",
	ErrCodeDatabaseNotFound:       "Database not found",
	ErrCodeTableNotFound:          "Table not found",
	ErrCodePrepareStatement:       "Failed to prepare SQL statement",
	ErrCodeExecuteStatement:       "Failed to execute SQL statement",
	ErrCodeQueryStatement:         "Failed to query SQL statement",
	ErrCodeIterate:                "Failed to read row",
	ErrCodeGet:                    "Failed to read column",
	ErrCodeUnsupported:            "Unsupported value type",
	ErrCodeInvalidDeclType:        "Invalid declared type",
	ErrCodeFromUtf8:               "Invalid UTF-8",
	ErrCodeInvalidParams:          "Invalid SQL parameters",
	ErrCodeCellPath:               "Cannot follow cell path",
	ErrCodeInternal:               "Internal error",
	ErrCodeNotImplemented:         "Not implemented",
}

// Headline returns the short user-facing title for a code.
func (c Code) Headline() string {
	if h, ok := headlines[c]; ok {
		return h
	}
	return "Error"
}

// Diagnostic renders e as exactly one Diagnostic. The native cause is
// nested unspanned; a suggestion is nested with its span.
func (e *Error) Diagnostic() Diagnostic {
	d := Diagnostic{
		Headline: e.Code.Headline(),
		Message:  e.Message,
		Span:     e.Span,
	}

	if e.Span == nil && e.Location != nil {
		d.Message = fmt.Sprintf("%s (internal call at %s)", e.Message, e.Location)
	}

	if e.Cause != nil {
		d.Inner = append(d.Inner, causeDiagnostic(e.Cause))
	}

	if e.Suggestion != nil {
		s := e.Suggestion.Span
		d.Inner = append(d.Inner, Diagnostic{
			Headline: "Did you mean?",
			Message:  fmt.Sprintf("did you mean '%s'?", e.Suggestion.Text),
			Span:     &s,
		})
	}

	return d
}

func causeDiagnostic(err error) Diagnostic {
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostic()
	}
	return Diagnostic{Headline: "Native error", Message: err.Error()}
}

// ToDiagnostic converts any error into a Diagnostic.
func ToDiagnostic(err error) Diagnostic {
	if err == nil {
		return Diagnostic{}
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostic()
	}
	return Diagnostic{Headline: "Error", Message: err.Error()}
}

// String renders the diagnostic as indented text.
func (d Diagnostic) String() string {
	var buf strings.Builder
	d.write(&buf, 0)
	return buf.String()
}

func (d Diagnostic) write(buf *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	buf.WriteString(indent)
	buf.WriteString(d.Headline)
	buf.WriteString(": ")
	buf.WriteString(d.Message)
	if d.Span != nil {
		buf.WriteString(" [")
		buf.WriteString(d.Span.String())
		buf.WriteString("]")
	}
	buf.WriteString("\n")
	for _, inner := range d.Inner {
		inner.write(buf, depth+1)
	}
}
