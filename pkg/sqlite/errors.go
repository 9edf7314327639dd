package sqlite

import (
	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
)

// attribute blames user source when a span is known, and the internal call
// site otherwise.
func attribute(b *errors.Builder, s span.Span, p provenance) *errors.Builder {
	if s.IsUnknown() {
		if loc, ok := p.Location(); ok {
			return b.WithLocation(loc)
		}
	}
	return b.WithSpan(s)
}

func openError(storage Storage, s span.Span, cause error) error {
	return errors.Wrapf(cause, errors.ErrCodeOpenConnection, "could not open database %s", storage).
		WithOp("Connection.Open").
		WithSpan(s).
		WithField("storage", storage.String()).
		Err()
}

func openInternalError(storage Storage, loc span.Location, cause error) error {
	return errors.Wrapf(cause, errors.ErrCodeOpenInternalConnection, "could not open database %s", storage).
		WithOp("Connection.OpenInternal").
		WithLocation(loc).
		WithField("storage", storage.String()).
		Err()
}

func promoteError(path string, s span.Span, cause error) error {
	return errors.Wrapf(cause, errors.ErrCodePromote, "could not copy %s into memory", path).
		WithOp("Connection.Promote").
		WithSpan(s).
		WithField("path", path).
		Err()
}

// deserializeError blames the call, and nests the native error under the
// span of the value whose bytes were rejected.
func deserializeError(callSpan, valueSpan span.Span, cause error) error {
	inner := errors.Wrap(cause, errors.ErrCodeDeserialize, "these bytes are not a valid database").
		WithSpan(valueSpan).
		Build()
	return errors.New(errors.ErrCodeDeserialize, "could not load database from bytes").
		WithOp("Connection.OpenFromBytes").
		WithSpan(callSpan).
		WithCause(inner).
		WithField("value_span", valueSpan.String()).
		Err()
}

func serializeError(s span.Span, cause error) error {
	return errors.Wrap(cause, errors.ErrCodeSerialize, "could not serialize database").
		WithOp("Connection.Serialize").
		WithSpan(s).
		Err()
}

func backupError(path string, s span.Span, cause error) error {
	return errors.Wrapf(cause, errors.ErrCodeBackup, "could not back up database to %s", path).
		WithOp("Connection.Backup").
		WithSpan(s).
		WithField("path", path).
		Err()
}

func prepareError(sql SQLText, s span.Span, cause error) error {
	b := errors.Wrapf(cause, errors.ErrCodePrepareStatement, "could not prepare %q", sql.String()).
		WithOp("Connection.Prepare").
		WithField("sql", sql.String())
	return attribute(b, s, sql.provenance).Err()
}

func executeError(sql SQLText, s span.Span, cause error) error {
	b := errors.Wrapf(cause, errors.ErrCodeExecuteStatement, "could not execute %q", sql.String()).
		WithOp("Statement.Execute").
		WithField("sql", sql.String())
	return attribute(b, s, sql.provenance).Err()
}

func queryError(sql SQLText, s span.Span, cause error) error {
	b := errors.Wrapf(cause, errors.ErrCodeQueryStatement, "could not run query %q", sql.String()).
		WithOp("Statement.Query").
		WithField("sql", sql.String())
	return attribute(b, s, sql.provenance).Err()
}

func iterateError(sql SQLText, index int, s span.Span, cause error) error {
	b := errors.Wrapf(cause, errors.ErrCodeIterate, "could not read row %d of %q", index, sql.String()).
		WithOp("Statement.Query").
		WithField("sql", sql.String()).
		WithField("index", index)
	return attribute(b, s, sql.provenance).Err()
}

func getError(sql SQLText, column string, index int, s span.Span, cause error) error {
	b := errors.Wrapf(cause, errors.ErrCodeGet, "could not read column %q of %q", column, sql.String()).
		WithOp("Row.Get").
		WithField("sql", sql.String()).
		WithField("column", column).
		WithField("column_index", index)
	return attribute(b, s, sql.provenance).Err()
}
