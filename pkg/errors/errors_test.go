package errors

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ha1tch/nudb/pkg/span"
)

func TestError_Message(t *testing.T) {
	err := Wrap(fmt.Errorf("no such table: t"), ErrCodePrepareStatement, "failed to prepare").Err()

	if got, want := err.Error(), "E5101: failed to prepare: no such table: t"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if !IsCode(err, ErrCodePrepareStatement) {
		t.Error("expected prepare code")
	}
	if !IsCategory(err, "statement") {
		t.Errorf("expected statement category, got %s", GetCode(err).Category())
	}
}

func TestError_UnwrapAndIs(t *testing.T) {
	err := Wrap(context.Canceled, ErrCodeExecCancelled, "interrupted").Err()
	if !Is(err, context.Canceled) {
		t.Error("expected wrapped context.Canceled")
	}

	outer := fmt.Errorf("evaluating: %w", err)
	var e *Error
	if !As(outer, &e) {
		t.Fatal("expected *Error through fmt wrapping")
	}
	if e.Code != ErrCodeExecCancelled {
		t.Errorf("expected %s, got %s", ErrCodeExecCancelled, e.Code)
	}
}

func TestCode_Category(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{ErrCodeConfigMissing, "configuration"},
		{ErrCodeOpenConnection, "storage"},
		{ErrCodeTableNotFound, "storage"},
		{ErrCodeGet, "statement"},
		{ErrCodeInvalidDeclType, "conversion"},
		{ErrCodeNotImplemented, "internal"},
		{Code(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.want {
			t.Errorf("%s.Category() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFields(t *testing.T) {
	err := New(ErrCodeGet, "bad column").WithField("column", "b").WithField("index", 1).Build()
	if got := err.Field("column"); got != "b" {
		t.Errorf("expected column b, got %v", got)
	}
	if diff := cmp.Diff(map[string]interface{}{"column": "b", "index": 1}, GetFields(err)); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if GetFields(fmt.Errorf("plain")) != nil {
		t.Error("plain errors carry no fields")
	}
}

func TestSuggestion(t *testing.T) {
	if _, ok := GetSuggestion(fmt.Errorf("plain")); ok {
		t.Error("plain errors carry no suggestion")
	}
	err := New(ErrCodeTableNotFound, "table peple not found").
		WithSpan(span.New(5, 10)).
		WithSuggestion("people", span.New(5, 10)).Err()
	if s, ok := GetSuggestion(err); !ok || s != "people" {
		t.Errorf("expected people, got %q (%v)", s, ok)
	}
}

func TestDiagnostic(t *testing.T) {
	sp := span.New(5, 10)
	err := Wrap(fmt.Errorf("disk I/O error"), ErrCodeTableNotFound, "table peple not found").
		WithSpan(sp).
		WithSuggestion("people", sp).Err()

	want := Diagnostic{
		Headline: "Table not found",
		Message:  "table peple not found",
		Span:     &sp,
		Inner: []Diagnostic{
			{Headline: "Native error", Message: "disk I/O error"},
			{Headline: "Did you mean?", Message: "did you mean 'people'?", Span: &sp},
		},
	}
	if diff := cmp.Diff(want, ToDiagnostic(err)); diff != "" {
		t.Errorf("diagnostic mismatch (-want +got):\n%s", diff)
	}

	text := ToDiagnostic(err).String()
	wantText := "Table not found: table peple not found [5..10]\n" +
		"  Native error: disk I/O error\n" +
		"  Did you mean?: did you mean 'people'? [5..10]\n"
	if text != wantText {
		t.Errorf("expected\n%s\ngot\n%s", wantText, text)
	}
}

func TestDiagnostic_NestedError(t *testing.T) {
	inner := New(ErrCodeNotImplemented, "bool decoding").Err()
	err := Wrap(inner, ErrCodeGet, "cannot read column b").Err()

	d := ToDiagnostic(err)
	if len(d.Inner) != 1 || d.Inner[0].Headline != "Not implemented" {
		t.Fatalf("expected nested structured diagnostic, got %+v", d.Inner)
	}
}

func TestDiagnostic_Location(t *testing.T) {
	loc := span.Location{File: "pkg/sqlite/connection.go", Line: 12}
	err := New(ErrCodeOpenInternalConnection, "cannot reopen").WithLocation(loc).Err()

	d := ToDiagnostic(err)
	if d.Span != nil {
		t.Errorf("internal errors carry no span, got %v", d.Span)
	}
	if !strings.HasSuffix(d.Message, "(internal call at pkg/sqlite/connection.go:12)") {
		t.Errorf("expected internal call site in message, got %q", d.Message)
	}
}

func TestToDiagnostic_Plain(t *testing.T) {
	if d := ToDiagnostic(nil); d.Headline != "" {
		t.Errorf("nil error should give an empty diagnostic, got %+v", d)
	}
	d := ToDiagnostic(fmt.Errorf("boom"))
	if d.Headline != "Error" || d.Message != "boom" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

func TestInternal_Location(t *testing.T) {
	err := Internal("handle closed").WithOp("database.handle").Build()
	if err.Location == nil || !strings.HasSuffix(err.Location.File, "errors_test.go") {
		t.Fatalf("expected this call site, got %v", err.Location)
	}
	if err.Span != nil {
		t.Error("internal errors carry no span")
	}

	verbose := fmt.Sprintf("%+v", err)
	for _, want := range []string{"E9001 internal: handle closed", "op database.handle", "internal pkg/errors/errors_test.go:"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("expected %q in %q", want, verbose)
		}
	}
}

func TestBuilder_Attribution(t *testing.T) {
	loc := span.Location{File: "x.go", Line: 1}
	err := New(ErrCodeGet, "bad").WithLocation(loc).WithSpan(span.New(1, 2)).Build()
	if err.Location != nil || err.Span == nil {
		t.Errorf("span should replace location, got %v %v", err.Span, err.Location)
	}
}
