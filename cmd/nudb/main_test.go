package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/sqlite"
)

func newDatabase(t *testing.T) (*sqlite.Connection, string) {
	t.Helper()
	ctx := context.Background()
	c, err := sqlite.Open(ctx, sqlite.NewInMemory(span.Unknown), span.Unknown, sqlite.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	for _, q := range []string{
		"CREATE TABLE people (name TEXT, age INT)",
		"INSERT INTO people VALUES ('ada', 36)",
	} {
		if _, err := c.Execute(ctx, sqlite.UserSQL(q, span.Unknown), sqlite.NoParams(), span.Unknown); err != nil {
			t.Fatalf("exec %q failed: %v", q, err)
		}
	}

	path := filepath.Join(t.TempDir(), "people.db")
	if err := c.Backup(ctx, path, span.Unknown); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	return c, path
}

func runCLI(t *testing.T, stdin []byte, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-log-level", "off"}, args...), bytes.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	_, path := newDatabase(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"whole database", []string{path}, `{"main":{"people":[{"name":"ada","age":36}]}}` + "\n"},
		{"path into column", []string{"-p", "main.people.name", path}, `["ada"]` + "\n"},
		{"path into row", []string{"-p", "main.people.0.age", path}, "36\n"},
		{"query with param", []string{"-q", "SELECT name FROM people WHERE age > :age", "-param", "age=30", path}, `[{"name":"ada"}]` + "\n"},
		{"promoted", []string{"-promote", "-p", "main.people.name", path}, `["ada"]` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, nil, tt.args...)
			if code != 0 {
				t.Fatalf("expected exit 0, got %d: %s", code, stderr)
			}
			if stdout != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stdout)
			}
		})
	}
}

func TestRun_Stdin(t *testing.T) {
	c, _ := newDatabase(t)
	data, err := c.Serialize(context.Background(), span.Unknown)
	if err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI(t, data, "-q", "SELECT :n AS n", "-param", "n=5", "-")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != `[{"n":5}]`+"\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestRun_Errors(t *testing.T) {
	_, path := newDatabase(t)
	missingConfig := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no input", nil, 2, "expected exactly one input"},
		{"unknown flag", []string{"-bogus", path}, 2, "flag provided but not defined"},
		{"watch stdin", []string{"-w", "-"}, 2, "-w needs a file"},
		{"bad log level", []string{"-log-level", "loud", path}, 2, "invalid log.level"},
		{"missing config", []string{"-config", missingConfig, path}, 1, "Missing configuration"},
		{"misspelled schema", []string{"-p", "mian.people", path}, 1, "Did you mean?"},
		{"bad sql", []string{"-q", "SELEC 1", path}, 1, "Failed to prepare SQL statement"},
		{"missing file", []string{filepath.Join(t.TempDir(), "none.db")}, 1, "Failed to open database connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, nil, tt.args...)
			if code != tt.code {
				t.Errorf("expected exit %d, got %d: %s", tt.code, code, stderr)
			}
			if !strings.Contains(stderr, tt.stderr) {
				t.Errorf("expected stderr to contain %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

func TestRun_Backup(t *testing.T) {
	_, path := newDatabase(t)
	out := filepath.Join(t.TempDir(), "copy.db")

	code, _, stderr := runCLI(t, nil, "-backup", out, path)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if ok, err := sqlite.IsSQLitePath(out); err != nil || !ok {
		t.Errorf("backup is not a database: %v %v", ok, err)
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, nil, "-version")
	if code != 0 || !strings.HasPrefix(stdout, "nudb version ") {
		t.Errorf("unexpected version output %d %q", code, stdout)
	}
}
