package sqlite

import (
	"database/sql"
)

// Column is result column metadata captured before iteration starts.
type Column struct {
	Name string

	// DatabaseType is the declared type as reported by the driver, upper-cased.
	DatabaseType string

	// Decl is DatabaseType parsed as a declared value type, if it is one.
	Decl DeclType
}

func columnsOf(rows *sql.Rows) ([]Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(types))
	for i, ct := range types {
		dbType := ct.DatabaseTypeName()
		cols[i] = Column{
			Name:         ct.Name(),
			DatabaseType: dbType,
			Decl:         ParseDeclType(dbType),
		}
	}
	return cols, nil
}
