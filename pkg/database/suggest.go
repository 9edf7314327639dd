package database

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
	"github.com/ha1tch/nudb/pkg/sqlite"
)

// suggest returns the candidate closest to name, if any is close enough to
// be a likely typo.
func suggest(name string, candidates []string) (string, bool) {
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}

	best, bestDist := "", limit+1
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
		if d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}

// blame prefers the span of the name the user wrote.
func blame(nameSpan, fallback span.Span) span.Span {
	if nameSpan.IsUnknown() {
		return fallback
	}
	return nameSpan
}

func databaseNotFound(name sqlite.DatabaseName, list sqlite.DatabaseList, sp span.Span) error {
	at := blame(name.Span(), sp)
	b := errors.Newf(errors.ErrCodeDatabaseNotFound, "database '%s' does not exist", name).
		WithOp("database.Schema").
		WithSpan(at).
		WithField("database", name.String())
	if s, ok := suggest(name.String(), list.Names()); ok {
		b = b.WithSuggestion(s, at)
	}
	return b.Err()
}

func tableNotFound(schema sqlite.DatabaseName, table sqlite.TableName, tables []sqlite.TableName, sp span.Span) error {
	at := blame(table.Span(), sp)
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.String()
	}
	b := errors.Newf(errors.ErrCodeTableNotFound, "table '%s' does not exist in database '%s'", table, schema).
		WithOp("database.Table").
		WithSpan(at).
		WithField("database", schema.String()).
		WithField("table", table.String())
	if s, ok := suggest(table.String(), names); ok {
		b = b.WithSuggestion(s, at)
	}
	return b.Err()
}
