package sqlite

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/ha1tch/nudb/pkg/span"
)

// MainName is the schema every connection has.
const MainName = "main"

// provenance records where a piece of text came from: user source (a span)
// or code in this module (a call site).
type provenance struct {
	span span.Span
	loc  *span.Location
}

// Span returns the user span, or span.Unknown for internal text.
func (p provenance) Span() span.Span { return p.span }

// Location returns the call site for internally generated text.
func (p provenance) Location() (span.Location, bool) {
	if p.loc == nil {
		return span.Location{}, false
	}
	return *p.loc, true
}

// IsInternal reports whether the text was generated by this module.
func (p provenance) IsInternal() bool { return p.loc != nil }

type provenanceDTO struct {
	Text     string         `json:"text"`
	Span     *span.Span     `json:"span,omitempty"`
	Location *span.Location `json:"location,omitempty"`
}

func (p provenance) dto(text string) provenanceDTO {
	d := provenanceDTO{Text: text, Location: p.loc}
	if p.loc == nil {
		s := p.span
		d.Span = &s
	}
	return d
}

func (d provenanceDTO) provenance() provenance {
	p := provenance{loc: d.Location}
	if d.Span != nil {
		p.span = *d.Span
	}
	return p
}

// QuoteIdent quotes an identifier for interpolation into SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SQLText is SQL source with its provenance. Equality looks at the text only.
type SQLText struct {
	provenance
	text string
}

// UserSQL wraps SQL written by the user.
func UserSQL(text string, s span.Span) SQLText {
	return SQLText{text: text, provenance: provenance{span: s}}
}

// InternalSQL wraps SQL generated at loc.
func InternalSQL(text string, loc span.Location) SQLText {
	return SQLText{text: text, provenance: provenance{loc: &loc}}
}

func (q SQLText) String() string { return q.text }

func (q SQLText) Equal(o SQLText) bool { return q.text == o.text }

// withText keeps the provenance but swaps the text, for expanded SQL.
func (q SQLText) withText(text string) SQLText {
	q.text = text
	return q
}

// DatabaseName names an attached schema.
type DatabaseName struct {
	provenance
	name string
}

// Main is the always-present main schema.
var Main = InternalDatabaseName(MainName, span.Here())

// UserDatabaseName wraps a schema name from user input.
func UserDatabaseName(name string, s span.Span) DatabaseName {
	return DatabaseName{name: name, provenance: provenance{span: s}}
}

// InternalDatabaseName wraps a schema name produced at loc.
func InternalDatabaseName(name string, loc span.Location) DatabaseName {
	return DatabaseName{name: name, provenance: provenance{loc: &loc}}
}

func (n DatabaseName) String() string { return n.name }

func (n DatabaseName) Equal(o DatabaseName) bool { return n.name == o.name }

// Quoted returns the name as a SQL identifier.
func (n DatabaseName) Quoted() string { return QuoteIdent(n.name) }

func (n DatabaseName) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.dto(n.name))
}

func (n *DatabaseName) UnmarshalJSON(data []byte) error {
	var d provenanceDTO
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*n = DatabaseName{name: d.Text, provenance: d.provenance()}
	return nil
}

// TableName names a table within a schema.
type TableName struct {
	provenance
	name string
}

// UserTableName wraps a table name from user input.
func UserTableName(name string, s span.Span) TableName {
	return TableName{name: name, provenance: provenance{span: s}}
}

// InternalTableName wraps a table name produced at loc.
func InternalTableName(name string, loc span.Location) TableName {
	return TableName{name: name, provenance: provenance{loc: &loc}}
}

func (t TableName) String() string { return t.name }

func (t TableName) Equal(o TableName) bool { return t.name == o.name }

// Quoted returns the name as a SQL identifier.
func (t TableName) Quoted() string { return QuoteIdent(t.name) }

func (t TableName) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.dto(t.name))
}

func (t *TableName) UnmarshalJSON(data []byte) error {
	var d provenanceDTO
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*t = TableName{name: d.Text, provenance: d.provenance()}
	return nil
}
