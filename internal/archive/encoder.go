package archive

import (
	"bytes"
	"time"
)

// Entry is one fully materialized archive member.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Encode produces a complete stored-only ZIP archive in memory. Output depends
// only on the entries: the same list always yields the same bytes.
func Encode(entries []Entry) ([]byte, error) {
	size := endOfCentralDirLen
	for _, e := range entries {
		size += localFileHeaderLen + centralDirectoryLen + 2*len(e.Name) + len(e.Data)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	zw := NewWriter(buf)
	for _, e := range entries {
		if err := zw.WriteEntry(e.Name, e.Modified, e.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
