// Package errors provides structured error handling for nudb.
//
// Every error carries a code and is attributed either to a span of user
// input (a path member, a SQL string, a table name) or to the internal call
// site that produced the value, never both. Lookups that fail may carry a
// did-you-mean suggestion.
//
// Error codes follow a hierarchical scheme:
//   - 1xxx: Configuration errors
//   - 4xxx: Execution errors
//   - 5xxx: Storage errors (connections, statements, navigation)
//   - 6xxx: Value conversion errors
//   - 9xxx: Internal errors
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ha1tch/nudb/pkg/span"
)

// Code is a numeric error code for programmatic handling.
type Code int

// Error codes by category
const (
	// Configuration errors (1xxx)
	ErrCodeConfigInvalid    Code = 1001
	ErrCodeConfigMissing    Code = 1002
	ErrCodeConfigParse      Code = 1003
	ErrCodeConfigValidation Code = 1004

	// Execution errors (4xxx)
	ErrCodeExecCancelled Code = 4003

	// Connection and storage errors (5xxx)
	ErrCodeOpenConnection         Code = 5001
	ErrCodeOpenInternalConnection Code = 5002
	ErrCodePromote                Code = 5003
	ErrCodeDeserialize            Code = 5004
	ErrCodeSerialize              Code = 5005
	ErrCodeBackup                 Code = 5006
	ErrCodeDatabaseNotFound       Code = 5010
	ErrCodeTableNotFound          Code = 5011

	// Statement errors (51xx)
	ErrCodePrepareStatement Code = 5101
	ErrCodeExecuteStatement Code = 5102
	ErrCodeQueryStatement   Code = 5103
	ErrCodeIterate          Code = 5104
	ErrCodeGet              Code = 5105

	// Value conversion errors (6xxx)
	ErrCodeUnsupported     Code = 6001
	ErrCodeInvalidDeclType Code = 6002
	ErrCodeFromUtf8        Code = 6003
	ErrCodeInvalidParams   Code = 6004
	ErrCodeCellPath        Code = 6005

	// Internal errors (9xxx)
	ErrCodeInternal       Code = 9001
	ErrCodeNotImplemented Code = 9002
)

func (c Code) String() string {
	return fmt.Sprintf("E%04d", c)
}

// Category returns the category for this code.
func (c Code) Category() string {
	switch {
	case c >= 1000 && c < 2000:
		return "configuration"
	case c >= 4000 && c < 5000:
		return "execution"
	case c >= 5000 && c < 5100:
		return "storage"
	case c >= 5100 && c < 6000:
		return "statement"
	case c >= 6000 && c < 7000:
		return "conversion"
	case c >= 9000:
		return "internal"
	default:
		return "unknown"
	}
}

// Suggestion is a did-you-mean hint attached to a failed lookup.
type Suggestion struct {
	Text string
	Span span.Span
}

// Error is a nudb failure. Span and Location are mutually exclusive.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Op      string // e.g. "Connection.Open", "Row.Get"

	// Fields name the column, parameter or storage involved.
	Fields map[string]interface{}

	Span       *span.Span
	Location   *span.Location
	Suggestion *Suggestion
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Code.String())
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}
	return buf.String()
}

// CodeString returns the code as text, for loggers that cannot import
// this package.
func (e *Error) CodeString() string {
	return e.Code.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format implements fmt.Formatter. %+v adds attribution and fields.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s %s: %s\n", e.Code, e.Code.Category(), e.Message)
			if e.Op != "" {
				fmt.Fprintf(f, "  op %s\n", e.Op)
			}
			switch {
			case e.Span != nil:
				fmt.Fprintf(f, "  at %s\n", e.Span)
			case e.Location != nil:
				fmt.Fprintf(f, "  internal %s\n", e.Location)
			}

			keys := make([]string, 0, len(e.Fields))
			for k := range e.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(f, "  %s=%v\n", k, e.Fields[k])
			}

			if e.Suggestion != nil {
				fmt.Fprintf(f, "  did you mean %q at %s\n", e.Suggestion.Text, e.Suggestion.Span)
			}
			if e.Cause != nil {
				fmt.Fprintf(f, "  caused by: %+v\n", e.Cause)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// Field returns a context field, or nil.
func (e *Error) Field(key string) interface{} {
	return e.Fields[key]
}

// Builder helps construct errors fluently.
type Builder struct {
	e Error
}

// New starts building a new error with the given code.
func New(code Code, message string) *Builder {
	return &Builder{e: Error{Code: code, Message: message}}
}

// Newf starts building a new error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Builder {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code Code, message string) *Builder {
	return New(code, message).WithCause(cause)
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code Code, format string, args ...interface{}) *Builder {
	return New(code, fmt.Sprintf(format, args...)).WithCause(cause)
}

func (b *Builder) WithCause(err error) *Builder {
	b.e.Cause = err
	return b
}

func (b *Builder) WithField(key string, value interface{}) *Builder {
	if b.e.Fields == nil {
		b.e.Fields = make(map[string]interface{})
	}
	b.e.Fields[key] = value
	return b
}

func (b *Builder) WithOp(op string) *Builder {
	b.e.Op = op
	return b
}

// WithSpan attributes the error to user source, replacing any location.
func (b *Builder) WithSpan(s span.Span) *Builder {
	b.e.Span = &s
	b.e.Location = nil
	return b
}

// WithLocation attributes the error to an internal call site, replacing
// any span.
func (b *Builder) WithLocation(l span.Location) *Builder {
	b.e.Location = &l
	b.e.Span = nil
	return b
}

// WithSuggestion attaches a did-you-mean hint. Empty text is ignored.
func (b *Builder) WithSuggestion(text string, s span.Span) *Builder {
	if text == "" {
		return b
	}
	b.e.Suggestion = &Suggestion{Text: text, Span: s}
	return b
}

// Build returns a copy of the error built so far.
func (b *Builder) Build() *Error {
	e := b.e
	return &e
}

// Err is a shorthand for Build() that returns error interface.
func (b *Builder) Err() error {
	return b.Build()
}

// NotImplemented reports a feature nudb does not handle yet.
func NotImplemented(feature string) *Builder {
	return Newf(ErrCodeNotImplemented, "%s not yet implemented", feature).
		WithField("feature", feature)
}

// Internal reports an unexpected condition at the caller's call site.
func Internal(msg string) *Builder {
	return New(ErrCodeInternal, msg).WithLocation(span.Caller(1))
}

// GetCode extracts the error code from an error, or returns ErrCodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetFields extracts context fields from an error.
func GetFields(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// GetSuggestion extracts the did-you-mean text from an error, if any.
func GetSuggestion(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Suggestion != nil {
		return e.Suggestion.Text, true
	}
	return "", false
}

func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsCategory(err error, category string) bool {
	return GetCode(err).Category() == category
}

// Standard library compatibility

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}
