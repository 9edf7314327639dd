package sqlite

import (
	"bytes"
	"io"
	"os"
)

// Magic is the header every SQLite database file starts with.
const Magic = "SQLite format 3\x00"

// IsSQLiteFile reports whether header starts with the SQLite magic string.
func IsSQLiteFile(header []byte) bool {
	return len(header) >= len(Magic) && bytes.Equal(header[:len(Magic)], []byte(Magic))
}

// IsSQLitePath reports whether the file at path is a SQLite database.
func IsSQLitePath(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return IsSQLiteFile(header), nil
}
