package sqlite

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/mitchellh/hashstructure"

	"github.com/ha1tch/nudb/pkg/span"
)

// DefaultHistoryName is the shared memory database used for history.
const DefaultHistoryName = "memdb1"

// StorageKind selects where a database lives.
type StorageKind int

const (
	StorageReadonlyFile StorageKind = iota + 1
	StorageWritableMemory
	StorageInMemory
	StorageHistory
)

func (k StorageKind) String() string {
	switch k {
	case StorageReadonlyFile:
		return "readonly_file"
	case StorageWritableMemory:
		return "writable_memory"
	case StorageInMemory:
		return "in_memory"
	case StorageHistory:
		return "history"
	default:
		return "unknown"
	}
}

func parseStorageKind(s string) (StorageKind, bool) {
	for k := StorageReadonlyFile; k <= StorageHistory; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Flags are the open flags a storage requires.
type Flags uint32

const (
	FlagReadOnly Flags = 1 << iota
	FlagReadWrite
	FlagCreate
	FlagURI
	FlagNoMutex
	FlagPrivateCache
	FlagSharedCache
	FlagMemory
)

func (f Flags) Has(o Flags) bool { return f&o == o }

// Storage describes where a database lives and how to open it.
type Storage struct {
	Kind StorageKind
	Span span.Span
	uri  URI
}

// NewReadonlyFile describes a database file opened read-only and immutable.
// Relative paths are resolved against the working directory.
func NewReadonlyFile(path string, s span.Span) Storage {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Storage{
		Kind: StorageReadonlyFile,
		Span: s,
		uri: NewURI("file", filepath.ToSlash(path),
			Param{"mode", "ro"},
			Param{"immutable", "1"},
			Param{"cache", "private"},
		),
	}
}

// NewWritableMemory describes a named shared memory database. The name is
// derived from identity so the same source always maps to the same database
// within a process.
func NewWritableMemory(identity interface{}, s span.Span) Storage {
	name := fmt.Sprintf("nu-sqlite-%016x", identityHash(identity))
	return Storage{
		Kind: StorageWritableMemory,
		Span: s,
		uri:  NewURI("file", name, Param{"mode", "memory"}, Param{"cache", "shared"}),
	}
}

// NewInMemory describes a private scratch database. It cannot be reopened.
func NewInMemory(s span.Span) Storage {
	return Storage{Kind: StorageInMemory, Span: s, uri: rawURI(":memory:")}
}

// NewHistory describes the process-wide history database.
func NewHistory(name string) Storage {
	if name == "" {
		name = DefaultHistoryName
	}
	return Storage{
		Kind: StorageHistory,
		uri:  NewURI("file", name, Param{"mode", "memory"}, Param{"cache", "shared"}),
	}
}

func identityHash(identity interface{}) uint64 {
	switch id := identity.(type) {
	case []byte:
		return xxhash.Sum64(id)
	case string:
		return xxhash.Sum64String(id)
	}
	h, err := hashstructure.Hash(identity, nil)
	if err != nil {
		return xxhash.Sum64String(fmt.Sprintf("%#v", identity))
	}
	return h
}

// Path returns the raw filesystem path or memory database name.
func (s Storage) Path() string { return s.uri.Path() }

// URI returns the encoded connection URI.
func (s Storage) URI() URI { return s.uri }

// Flags returns the open flags implied by the storage kind.
func (s Storage) Flags() Flags {
	switch s.Kind {
	case StorageReadonlyFile:
		return FlagReadOnly | FlagURI | FlagNoMutex | FlagPrivateCache
	case StorageWritableMemory, StorageHistory:
		return FlagReadWrite | FlagCreate | FlagURI | FlagSharedCache | FlagMemory
	default:
		return FlagReadWrite | FlagCreate | FlagMemory
	}
}

// Reopenable reports whether opening the storage again reaches the same data.
func (s Storage) Reopenable() bool {
	return s.Kind != StorageInMemory
}

// dsn is the driver connection string: the URI plus driver-only options.
func (s Storage) dsn() string {
	var opts []string
	if s.Flags().Has(FlagNoMutex) {
		opts = append(opts, "_mutex=no")
	}
	// Lock contention is retried in Go, see busy.go.
	opts = append(opts, "_busy_timeout=0")

	sep := "?"
	if strings.Contains(s.uri.String(), "?") {
		sep = "&"
	}
	return s.uri.String() + sep + strings.Join(opts, "&")
}

func (s Storage) String() string {
	switch s.Kind {
	case StorageReadonlyFile:
		return s.Path()
	case StorageInMemory:
		return ":memory:"
	default:
		return s.Kind.String() + ":" + s.Path()
	}
}

type storageDTO struct {
	Kind string     `json:"kind"`
	Path string     `json:"path,omitempty"`
	Span *span.Span `json:"span,omitempty"`
}

func (s Storage) MarshalJSON() ([]byte, error) {
	d := storageDTO{Kind: s.Kind.String()}
	switch s.Kind {
	case StorageReadonlyFile, StorageWritableMemory, StorageHistory:
		d.Path = s.Path()
	}
	if s.Kind != StorageHistory {
		sp := s.Span
		d.Span = &sp
	}
	return json.Marshal(d)
}

func (s *Storage) UnmarshalJSON(data []byte) error {
	var d storageDTO
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	kind, ok := parseStorageKind(d.Kind)
	if !ok {
		return fmt.Errorf("unknown storage kind %q", d.Kind)
	}
	var sp span.Span
	if d.Span != nil {
		sp = *d.Span
	}
	switch kind {
	case StorageReadonlyFile:
		*s = NewReadonlyFile(filepath.FromSlash(d.Path), sp)
	case StorageWritableMemory:
		*s = Storage{
			Kind: kind,
			Span: sp,
			uri:  NewURI("file", d.Path, Param{"mode", "memory"}, Param{"cache", "shared"}),
		}
	case StorageInMemory:
		*s = NewInMemory(sp)
	case StorageHistory:
		*s = NewHistory(d.Path)
	}
	return nil
}
