package sqlite

import (
	"database/sql"

	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/value"
)

// readRow decodes the current row into a record keyed by column name.
// Errors are attributed to expanded, the SQL with its bound values.
func readRow(rows *sql.Rows, cols []Column, expanded SQLText, s span.Span) (value.Value, error) {
	raw := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return value.Value{}, getError(expanded, "*", -1, s, err)
	}

	rec := value.NewRecord()
	for i, col := range cols {
		v, err := FromSQL(raw[i], col.Decl, s)
		if err != nil {
			return value.Value{}, getError(expanded, col.Name, i, s, err)
		}
		rec.Push(col.Name, v)
	}
	return value.RecordOf(rec, s), nil
}
