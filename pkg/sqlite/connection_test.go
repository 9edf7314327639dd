package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/log"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

func openMemory(t *testing.T) *Connection {
	t.Helper()
	c, err := Open(context.Background(), NewInMemory(span.Unknown), span.Unknown, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("failed to open memory database: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustExec(t *testing.T, c *Connection, sql string) {
	t.Helper()
	if _, err := c.Execute(context.Background(), UserSQL(sql, span.Unknown), NoParams(), span.Unknown); err != nil {
		t.Fatalf("exec %q failed: %v", sql, err)
	}
}

func str(s string) value.Value { return value.String(s, span.Unknown) }

func TestReadAll_EmptyDatabase(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()

	all, err := c.ReadAll(ctx, span.Unknown)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	rec, ok := all.AsRecord()
	if !ok {
		t.Fatalf("expected record, got %s", all.TypeName())
	}
	if diff := cmp.Diff([]string{"main"}, rec.Columns()); diff != "" {
		t.Errorf("schemas mismatch (-want +got):\n%s", diff)
	}
	main, _ := rec.Get("main")
	if tables, _ := main.AsRecord(); tables.Len() != 0 {
		t.Errorf("expected empty main schema, got %s", main)
	}

	mustExec(t, c, "CREATE TABLE person (id INTEGER PRIMARY KEY, name TEXT)")

	schema, err := c.ReadSchema(ctx, Main, span.Unknown)
	if err != nil {
		t.Fatalf("ReadSchema failed: %v", err)
	}
	want := value.NewRecord()
	want.Push("person", value.List(nil, span.Unknown))
	if !schema.Equal(value.RecordOf(want, span.Unknown)) {
		t.Errorf("expected {person: []}, got %s", schema)
	}
}

func TestReadTable_NullAndValue(t *testing.T) {
	c := openMemory(t)
	mustExec(t, c, "CREATE TABLE item (name TEXT)")
	mustExec(t, c, "INSERT INTO item (name) VALUES (NULL)")
	mustExec(t, c, "INSERT INTO item (name) VALUES ('x')")

	got, err := c.ReadTable(context.Background(), Main, UserTableName("item", span.Unknown), span.Unknown)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	row := func(v value.Value) value.Value {
		r := value.NewRecord()
		r.Push("name", v)
		return value.RecordOf(r, span.Unknown)
	}
	want := value.List([]value.Value{row(value.Nothing(span.Unknown)), row(str("x"))}, span.Unknown)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDeclaredTypes_RoundTrip(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	u := span.Unknown

	path, _ := value.ParseCellPath("a.0?")
	tests := []value.Value{
		value.Duration(0, u),
		value.Duration(-5, u),
		value.Filesize(1024, u),
		value.Bool(true, u),
		value.Bool(false, u),
		value.Int(42, u),
		value.Float(1.5, u),
		str("hello"),
		value.Binary([]byte{0, 1, 2}, u),
		value.Nothing(u),
		value.RecordOf(value.NewRecord(), u),
		value.List([]value.Value{value.Int(1, u), str("a")}, u),
		value.List([]value.Value{value.Float(1, u), value.Float(-2, u), value.Float(1e21, u)}, u),
		value.Glob("*.db", true, u),
		value.Date(time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC), u),
		value.CellPathOf(path, u),
	}

	for i, v := range tests {
		decl, err := DeclTypeOf(v)
		if err != nil {
			t.Fatalf("DeclTypeOf(%s) failed: %v", v.TypeName(), err)
		}
		declStr, _ := decl.Literal(false)
		table := QuoteIdent("t" + string(rune('a'+i)))

		mustExec(t, c, "CREATE TABLE "+table+" (v "+declStr+")")
		params, err := PositionalParams([]value.Value{v})
		if err != nil {
			t.Fatalf("PositionalParams(%s) failed: %v", v.TypeName(), err)
		}
		if _, err := c.Execute(ctx, UserSQL("INSERT INTO "+table+" VALUES (?)", u), params, u); err != nil {
			t.Fatalf("insert %s failed: %v", v.TypeName(), err)
		}

		rows, err := c.Query(ctx, UserSQL("SELECT v FROM "+table, u), NoParams(), u)
		if err != nil {
			t.Fatalf("select %s failed: %v", v.TypeName(), err)
		}
		list, _ := rows.AsList()
		if len(list) != 1 {
			t.Fatalf("expected 1 row for %s, got %d", v.TypeName(), len(list))
		}
		rec, _ := list[0].AsRecord()
		got, _ := rec.Get("v")
		if !got.Equal(v) {
			t.Errorf("%s (%s): expected %s, got %s (%s)", v.TypeName(), declStr, v, got, got.TypeName())
		}
	}
}

func TestQuery_DecodeErrors(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	mustExec(t, c, "CREATE TABLE flags (b BOOL TEXT, d DURATION INT)")
	mustExec(t, c, "INSERT INTO flags VALUES ('maybe', 1)")

	_, err := c.Query(ctx, UserSQL("SELECT b FROM flags", span.New(3, 9)), NoParams(), span.New(3, 9))
	if !errors.IsCode(err, errors.ErrCodeGet) {
		t.Fatalf("expected Get error, got %v", err)
	}
	var e *errors.Error
	errors.As(err, &e)
	if !errors.IsCode(e.Cause, errors.ErrCodeNotImplemented) {
		t.Errorf("expected not implemented cause, got %v", e.Cause)
	}
	if e.Field("column") != "b" {
		t.Errorf("expected column b, got %v", e.Field("column"))
	}

	mustExec(t, c, "UPDATE flags SET d = 1.5")
	_, err = c.Query(ctx, UserSQL("SELECT d FROM flags", span.Unknown), NoParams(), span.Unknown)
	var get *errors.Error
	if !errors.As(err, &get) || !errors.IsCode(get.Cause, errors.ErrCodeInvalidDeclType) {
		t.Errorf("expected invalid declared type, got %v", err)
	}
}

func TestPrepare_ErrorDiagnostic(t *testing.T) {
	c := openMemory(t)
	s := span.New(10, 20)

	_, err := c.Prepare(context.Background(), UserSQL("SELEC 1", s), s)
	if !errors.IsCode(err, errors.ErrCodePrepareStatement) {
		t.Fatalf("expected prepare error, got %v", err)
	}

	d := errors.ToDiagnostic(err)
	if d.Span == nil || *d.Span != s {
		t.Errorf("expected span %s, got %v", s, d.Span)
	}
	if len(d.Inner) != 1 || d.Inner[0].Headline != "Native error" || d.Inner[0].Span != nil {
		t.Errorf("expected one unspanned native error, got %+v", d.Inner)
	}
}

func TestListTables_QuotedName(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	mustExec(t, c, `CREATE TABLE "a""b" (x INT)`)
	mustExec(t, c, `INSERT INTO "a""b" VALUES (7)`)

	tables, err := c.ListTables(ctx, Main, span.Unknown)
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(tables) != 1 || tables[0].String() != `a"b` {
		t.Fatalf(`expected [a"b], got %v`, tables)
	}

	rows, err := c.ReadTable(ctx, Main, tables[0], span.Unknown)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	list, _ := rows.AsList()
	if len(list) != 1 {
		t.Errorf("expected 1 row, got %d", len(list))
	}
}

func TestQueryEach_Cancellation(t *testing.T) {
	c := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stmt, err := c.Prepare(ctx, UserSQL(
		"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 10000) SELECT i FROM n",
		span.Unknown), span.Unknown)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer stmt.Close()

	seen := 0
	err = stmt.QueryEach(ctx, NoParams(), span.Unknown, func(i int, row value.Value) error {
		seen++
		if i == 1 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if seen >= 10000 {
		t.Errorf("iteration did not stop, saw %d rows", seen)
	}
	if seen != 2 {
		t.Errorf("expected to stop after row 1, saw %d rows", seen)
	}
}

func TestQuery_EmptyResult(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	mustExec(t, c, "CREATE TABLE t (x INT)")

	got, err := c.Query(ctx, UserSQL("SELECT x FROM t", span.Unknown), NoParams(), span.Unknown)
	if err != nil {
		t.Fatalf("Query on an empty table failed: %v", err)
	}
	if list, ok := got.AsList(); !ok || len(list) != 0 {
		t.Errorf("expected empty list, got %s", got)
	}

	got, err = c.Query(ctx, UserSQL("SELECT 1 AS one WHERE 0", span.Unknown), NoParams(), span.Unknown)
	if err != nil {
		t.Fatalf("Query with no matching rows failed: %v", err)
	}
	if list, ok := got.AsList(); !ok || len(list) != 0 {
		t.Errorf("expected empty list, got %s", got)
	}
}

func TestNamedParams(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	mustExec(t, c, "CREATE TABLE kv (k TEXT, v INT)")

	rec := value.NewRecord()
	rec.Push("k", str("a"))
	rec.Push("@v", value.Int(1, span.Unknown))
	params, err := NamedParams(rec, span.Unknown)
	if err != nil {
		t.Fatalf("NamedParams failed: %v", err)
	}

	n, err := c.Execute(ctx, UserSQL("INSERT INTO kv VALUES (:k, @v)", span.Unknown), params, span.Unknown)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row affected, got %d", n)
	}

	bad := value.NewRecord()
	bad.Push("not-a-name", value.Int(1, span.Unknown))
	if _, err := NamedParams(bad, span.Unknown); !errors.IsCode(err, errors.ErrCodeInvalidParams) {
		t.Errorf("expected invalid params error, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "source.db")

	src := openMemory(t)
	mustExec(t, src, "CREATE TABLE t (x INT)")
	mustExec(t, src, "INSERT INTO t VALUES (1)")
	if err := src.Backup(ctx, path, span.Unknown); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if ok, err := IsSQLitePath(path); err != nil || !ok {
		t.Fatalf("backup is not a sqlite file: %v %v", ok, err)
	}

	ro, err := OpenFromPipeline(ctx, value.FromFile(path, nil, span.Unknown), span.Unknown, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("OpenFromPipeline failed: %v", err)
	}
	if ro.Storage().Kind != StorageReadonlyFile {
		t.Fatalf("expected read-only file storage, got %s", ro.Storage().Kind)
	}
	if _, err := ro.Execute(ctx, UserSQL("INSERT INTO t VALUES (2)", span.Unknown), NoParams(), span.Unknown); err == nil {
		t.Error("read-only database accepted a write")
	}

	once, err := ro.Promote(ctx)
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	defer once.Close()
	if once.Storage().Kind != StorageWritableMemory {
		t.Fatalf("expected writable memory, got %s", once.Storage().Kind)
	}

	twice, err := once.Promote(ctx)
	if err != nil {
		t.Fatalf("second Promote failed: %v", err)
	}
	if twice != once {
		t.Error("promoting a writable connection should return it unchanged")
	}

	mustExec(t, twice, "INSERT INTO t VALUES (2)")
	rows, err := twice.ReadTable(ctx, Main, UserTableName("t", span.Unknown), span.Unknown)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if list, _ := rows.AsList(); len(list) != 2 {
		t.Errorf("expected 2 rows after promotion, got %d", len(list))
	}
}

func TestOpenFromBytes(t *testing.T) {
	ctx := context.Background()
	src := openMemory(t)
	mustExec(t, src, "CREATE TABLE t (name TEXT)")
	mustExec(t, src, "INSERT INTO t VALUES ('from bytes')")

	data, err := src.Serialize(ctx, span.Unknown)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !IsSQLiteFile(data) {
		t.Fatal("serialized bytes lack the sqlite header")
	}

	c, err := OpenFromValue(ctx, value.Binary(data, span.New(1, 2)), span.New(0, 5), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("OpenFromValue failed: %v", err)
	}
	defer c.Close()
	if c.Storage().Kind != StorageWritableMemory {
		t.Errorf("expected writable memory, got %s", c.Storage().Kind)
	}

	v, err := c.ReadTable(ctx, Main, UserTableName("t", span.Unknown), span.Unknown)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	list, _ := v.AsList()
	if len(list) != 1 {
		t.Fatalf("expected 1 row, got %d", len(list))
	}
	rec, _ := list[0].AsRecord()
	if name, _ := rec.Get("name"); !name.Equal(str("from bytes")) {
		t.Errorf("unexpected row %s", list[0])
	}

	if _, err := OpenFromValue(ctx, value.Int(1, span.Unknown), span.Unknown); !errors.IsCode(err, errors.ErrCodeDeserialize) {
		t.Errorf("expected deserialize error for int input, got %v", err)
	}
	garbage := value.Binary([]byte("definitely not a database file"), span.New(1, 2))
	if _, err := OpenFromValue(ctx, garbage, span.Unknown, WithLogger(log.Discard())); !errors.IsCode(err, errors.ErrCodeDeserialize) {
		t.Errorf("expected deserialize error for garbage bytes, got %v", err)
	}
}

func TestOpenFromBytes_GrowsAndReopens(t *testing.T) {
	ctx := context.Background()
	src := openMemory(t)
	mustExec(t, src, "CREATE TABLE big (body TEXT)")
	data, err := src.Serialize(ctx, span.Unknown)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	c, err := OpenFromBytes(ctx, data, span.Unknown, span.Unknown, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("OpenFromBytes failed: %v", err)
	}
	defer c.Close()

	// Far more than the serialized pages can hold.
	for i := 0; i < 50; i++ {
		mustExec(t, c, "INSERT INTO big VALUES (hex(zeroblob(1000)))")
	}

	again, err := OpenInternal(ctx, c.Storage(), span.Here(), WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("OpenInternal failed: %v", err)
	}
	defer again.Close()

	rows, err := again.Query(ctx, UserSQL("SELECT count(*) AS n FROM big", span.Unknown), NoParams(), span.Unknown)
	if err != nil {
		t.Fatalf("reopened database lost the table: %v", err)
	}
	list, _ := rows.AsList()
	rec, _ := list[0].AsRecord()
	if n, _ := rec.Get("n"); !n.Equal(value.Int(50, span.Unknown)) {
		t.Errorf("expected 50 rows through the reopened name, got %s", n)
	}
}

func TestWritableMemory_Shared(t *testing.T) {
	ctx := context.Background()
	storage := NewWritableMemory("shared-test-identity", span.Unknown)

	a, err := Open(ctx, storage, span.Unknown, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()
	b, err := Open(ctx, storage, span.Unknown, WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	mustExec(t, a, "CREATE TABLE shared (x INT)")

	tables, err := b.ListTables(ctx, Main, span.Unknown)
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(tables) != 1 || tables[0].String() != "shared" {
		t.Errorf("expected the table to be visible on the second connection, got %v", tables)
	}
}

func TestWriteTable(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	u := span.Unknown

	row := func(name string, size int64, took int64, ok bool) value.Value {
		r := value.NewRecord()
		r.Push("name", str(name))
		r.Push("size", value.Filesize(size, u))
		r.Push("took", value.Duration(took, u))
		r.Push("ok", value.Bool(ok, u))
		return value.RecordOf(r, u)
	}
	rows := value.List([]value.Value{row("a", 10, 5, true), row("b", 2048, -1, false)}, u)

	n, err := c.WriteTable(ctx, Main, UserTableName("runs", u), rows, false, u)
	if err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows inserted, got %d", n)
	}

	got, err := c.ReadTable(ctx, Main, UserTableName("runs", u), u)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if !got.Equal(rows) {
		t.Errorf("expected %s, got %s", rows, got)
	}

	if _, err := c.WriteTable(ctx, Main, UserTableName("strict", u), rows, true, u); !errors.IsCode(err, errors.ErrCodeUnsupported) {
		t.Errorf("strict write of filesize should be unsupported, got %v", err)
	}

	desc, err := c.Describe(ctx, Main, UserTableName("runs", u), u)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	rec, _ := desc.AsRecord()
	cols, _ := rec.Get("columns")
	if list, _ := cols.AsList(); len(list) != 4 {
		t.Errorf("expected 4 columns, got %s", cols)
	}

	if err := c.DropAllTables(ctx, Main, u); err != nil {
		t.Fatalf("DropAllTables failed: %v", err)
	}
	tables, _ := c.ListTables(ctx, Main, u)
	if len(tables) != 0 {
		t.Errorf("expected no tables, got %v", tables)
	}
}

func TestWriteTable_AllNullColumn(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	u := span.Unknown

	row := func(name string) value.Value {
		r := value.NewRecord()
		r.Push("name", str(name))
		r.Push("note", value.Nothing(u))
		return value.RecordOf(r, u)
	}
	rows := value.List([]value.Value{row("a"), row("b")}, u)

	if _, err := c.WriteTable(ctx, Main, UserTableName("notes", u), rows, false, u); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	got, err := c.ReadTable(ctx, Main, UserTableName("notes", u), u)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if !got.Equal(rows) {
		t.Errorf("expected %s, got %s", rows, got)
	}
}

func TestListDatabases(t *testing.T) {
	c := openMemory(t)
	list, err := c.ListDatabases(context.Background(), span.Unknown)
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	if !list.HasDatabase("main") || list.HasDatabase("mian") {
		t.Errorf("unexpected database list %+v", list)
	}
}
