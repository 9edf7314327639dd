package value

import (
	"io"

	"github.com/ha1tch/nudb/pkg/span"
)

// DataSourceKind describes where pipeline data came from.
type DataSourceKind int

const (
	SourceNone DataSourceKind = iota
	SourceFilePath
	SourceHTML
)

// DataSource is provenance metadata attached to pipeline input.
type DataSource struct {
	Kind DataSourceKind
	Path string
}

// Metadata accompanies PipelineData.
type Metadata struct {
	DataSource DataSource
}

// PipelineData is input handed to a command: either a single value or a byte
// stream, optionally annotated with where it came from.
type PipelineData struct {
	Value    *Value
	Stream   io.Reader
	Metadata *Metadata
	Span     span.Span
}

// FromFile returns pipeline data known to originate from path.
func FromFile(path string, r io.Reader, s span.Span) PipelineData {
	return PipelineData{
		Stream:   r,
		Metadata: &Metadata{DataSource: DataSource{Kind: SourceFilePath, Path: path}},
		Span:     s,
	}
}

// FromValue wraps v as pipeline data with no provenance.
func FromValue(v Value) PipelineData {
	return PipelineData{Value: &v, Span: v.Span()}
}

// SourcePath returns the originating file path if the metadata records one.
func (p PipelineData) SourcePath() (string, bool) {
	if p.Metadata == nil || p.Metadata.DataSource.Kind != SourceFilePath {
		return "", false
	}
	return p.Metadata.DataSource.Path, p.Metadata.DataSource.Path != ""
}

// IntoValue collects the pipeline into one value. Streams become Binary.
func (p PipelineData) IntoValue() (Value, error) {
	if p.Value != nil {
		return *p.Value, nil
	}
	if p.Stream == nil {
		return Nothing(p.Span), nil
	}
	b, err := io.ReadAll(p.Stream)
	if err != nil {
		return Value{}, err
	}
	return Binary(b, p.Span), nil
}
