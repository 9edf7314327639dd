package log

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"err", LevelError, false},
		{"none", LevelOff, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("empty format should be text, got %v %v", f, err)
	}
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("expected json, got %v %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{
		DefaultLevel:   LevelWarn,
		CategoryLevels: map[Category]Level{CategoryQuery: LevelDebug},
		Output:         &buf,
	})

	l.Storage().Info("hidden")
	l.Storage().Warn("opened read-only", "path", "/tmp/a.db")
	l.Query().Debug("prepared", "sql", "SELECT 1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered for storage: %s", out)
	}
	if !strings.Contains(out, "WARN  [storage] opened read-only path=/tmp/a.db") {
		t.Errorf("missing storage warning: %s", out)
	}
	if !strings.Contains(out, `DEBUG [query] prepared sql="SELECT 1"`) {
		t.Errorf("missing query debug: %s", out)
	}
	if l.Logged() != 2 {
		t.Errorf("expected 2 entries, got %d", l.Logged())
	}
	if l.Enabled(CategoryStorage, LevelInfo) {
		t.Error("storage info should be disabled")
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelDebug, Output: &buf, Format: FormatJSON})

	l.Storage().Error("backup failed", fmt.Errorf("disk full"), "dest", "copy.db")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if entry.Level != "ERROR" || entry.Category != CategoryStorage || entry.Message != "backup failed" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if entry.ErrorStr != "disk full" || entry.Fields["dest"] != "copy.db" {
		t.Errorf("unexpected error or fields %+v", entry)
	}
}

func TestLogger_Off(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelOff, Output: &buf})
	l.System().Error("nothing", nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestContext(t *testing.T) {
	l := Discard()
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background()) == nil {
		t.Error("expected default logger without one in context")
	}
}

type codedError struct{}

func (codedError) Error() string      { return "locked" }
func (codedError) CodeString() string { return "E5102" }

func TestLogger_ErrorCode(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelError, Output: &buf})
	l.Query().Error("execute failed", fmt.Errorf("retrying: %w", codedError{}))

	if !strings.Contains(buf.String(), `execute failed code=E5102 error="retrying: locked"`) {
		t.Errorf("unexpected line %q", buf.String())
	}
}
