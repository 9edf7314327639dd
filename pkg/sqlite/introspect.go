package sqlite

import (
	"context"
	"strings"

	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// Describe returns the columns, indexes and foreign keys of schema.table as
// a record of three tables.
func (c *Connection) Describe(ctx context.Context, schema DatabaseName, table TableName, s span.Span) (value.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Names are bound as arguments to the pragma functions, never interpolated.
	params, err := PositionalParams([]value.Value{
		value.String(table.String(), s),
		value.String(schema.String(), s),
	})
	if err != nil {
		return value.Value{}, err
	}

	rec := value.NewRecord()
	for _, q := range []struct {
		key    string
		pragma string
	}{
		{"columns", "pragma_table_info"},
		{"indexes", "pragma_index_list"},
		{"foreign_keys", "pragma_foreign_key_list"},
	} {
		sql := InternalSQL("SELECT * FROM "+q.pragma+"(?, ?)", span.Here())
		rows, err := c.query(ctx, sql, params, s)
		if err != nil {
			return value.Value{}, err
		}
		rec.Push(q.key, rows)
	}
	return value.RecordOf(rec, s), nil
}

// WriteTable creates schema.table if needed and inserts rows, a list of
// records or a single record. Column declared types come from the first
// non-null value in each column; strict keeps them plain SQL. It returns the
// number of rows inserted.
func (c *Connection) WriteTable(ctx context.Context, schema DatabaseName, table TableName, rows value.Value, strict bool, s span.Span) (int64, error) {
	records, err := recordsOf(rows)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	cols, decls := inferColumns(records)
	defs := make([]string, len(cols))
	for i, col := range cols {
		declStr, ok := decls[i].tag.Literal(strict)
		if !ok {
			return 0, unsupportedError(decls[i].sample)
		}
		defs[i] = QuoteIdent(col) + " " + declStr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target := schema.Quoted() + "." + table.Quoted()
	create := InternalSQL("CREATE TABLE IF NOT EXISTS "+target+" ("+strings.Join(defs, ", ")+")", span.Here())
	if _, err := c.execute(ctx, create, NoParams(), s); err != nil {
		return 0, err
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = QuoteIdent(col)
		marks[i] = "?"
	}
	insert := InternalSQL(
		"INSERT INTO "+target+" ("+strings.Join(quoted, ", ")+") VALUES ("+strings.Join(marks, ", ")+")",
		span.Here(),
	)

	if _, err := c.execute(ctx, InternalSQL("BEGIN", span.Here()), NoParams(), s); err != nil {
		return 0, err
	}
	n, err := c.insertAll(ctx, insert, cols, records, strict, s)
	if err != nil {
		c.execute(ctx, InternalSQL("ROLLBACK", span.Here()), NoParams(), s)
		return 0, err
	}
	if _, err := c.execute(ctx, InternalSQL("COMMIT", span.Here()), NoParams(), s); err != nil {
		return 0, err
	}

	c.opts.logger(ctx).Storage().Info("wrote table",
		"table", table.String(),
		"schema", schema.String(),
		"rows", n,
	)
	return n, nil
}

func (c *Connection) insertAll(ctx context.Context, insert SQLText, cols []string, records []*value.Record, strict bool, s span.Span) (int64, error) {
	stmt, err := c.prepare(ctx, insert, s)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, rec := range records {
		p := Params{positional: make([]interface{}, len(cols))}
		for i, col := range cols {
			v, ok := rec.Get(col)
			if !ok {
				continue
			}
			raw, err := ToSQL(v, strict)
			if err != nil {
				return 0, err
			}
			p.positional[i] = raw
		}
		n, err := stmt.execute(ctx, p, s)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// DropAllTables drops every table in schema.
func (c *Connection) DropAllTables(ctx context.Context, schema DatabaseName, s span.Span) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tables, err := c.listTables(ctx, schema, s)
	if err != nil {
		return err
	}
	for _, table := range tables {
		drop := InternalSQL("DROP TABLE "+schema.Quoted()+"."+table.Quoted(), span.Here())
		if _, err := c.execute(ctx, drop, NoParams(), s); err != nil {
			return err
		}
	}
	return nil
}

type columnDecl struct {
	tag    DeclType
	sample value.Value
}

func recordsOf(rows value.Value) ([]*value.Record, error) {
	if rec, ok := rows.AsRecord(); ok {
		return []*value.Record{rec}, nil
	}
	list, ok := rows.AsList()
	if !ok {
		return nil, unsupportedError(rows)
	}
	records := make([]*value.Record, 0, len(list))
	for _, item := range list {
		rec, ok := item.AsRecord()
		if !ok {
			return nil, unsupportedError(item)
		}
		records = append(records, rec)
	}
	return records, nil
}

// inferColumns collects column names in order of first appearance and the
// declared type of the first non-null value of each.
func inferColumns(records []*value.Record) ([]string, []columnDecl) {
	var cols []string
	var decls []columnDecl
	index := make(map[string]int)

	for _, rec := range records {
		rec.Each(func(col string, v value.Value) bool {
			i, seen := index[col]
			if !seen {
				i = len(cols)
				index[col] = i
				cols = append(cols, col)
				decls = append(decls, columnDecl{tag: DeclNothing, sample: v})
			}
			if decls[i].tag == DeclNothing && !v.IsNothing() {
				tag, err := DeclTypeOf(v)
				if err != nil {
					tag = DeclUnknown
				}
				decls[i] = columnDecl{tag: tag, sample: v}
			}
			return true
		})
	}
	return cols, decls
}
