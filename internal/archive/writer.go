package archive

import (
	"hash"
	"hash/crc32"
	"io"
	"time"
)

// Writer emits a stored-only, single-disk ZIP container to an io.Writer,
// one entry at a time. Entries must be written sequentially: starting a new
// entry finishes the previous one. Nothing but the central directory records
// is kept in memory.
type Writer struct {
	w       *countWriter
	dir     []fileHeader
	current *entryWriter
	closed  bool
	err     error
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: &countWriter{w: w}}
}

// Offset is the number of bytes written so far.
func (zw *Writer) Offset() int64 {
	return zw.w.n
}

// Entries is the number of entries started so far.
func (zw *Writer) Entries() int {
	n := len(zw.dir)
	if zw.current != nil {
		n++
	}
	return n
}

// WriteEntry writes a complete entry whose bytes are known up front. The CRC
// and sizes go straight into the local header; no data descriptor is used.
func (zw *Writer) WriteEntry(name string, modified time.Time, data []byte) error {
	if err := zw.prepare(name); err != nil {
		return err
	}
	if int64(len(data)) > maxUint32 {
		return ErrTooLarge
	}

	date, clock := dosDateTime(modified)
	h := fileHeader{
		name:    name,
		modTime: clock,
		modDate: date,
		crc32:   crc32.ChecksumIEEE(data),
		size:    uint32(len(data)),
		offset:  uint32(zw.w.n),
	}
	if err := zw.write(h.local()); err != nil {
		return err
	}
	if err := zw.write(data); err != nil {
		return err
	}
	zw.dir = append(zw.dir, h)
	return nil
}

// CreateEntry starts an entry whose bytes are not known yet. The returned
// writer accumulates CRC-32 and size as bytes pass through; both are written
// in a data descriptor once the entry is finished by the next CreateEntry,
// WriteEntry or Close.
func (zw *Writer) CreateEntry(name string, modified time.Time) (io.Writer, error) {
	if err := zw.prepare(name); err != nil {
		return nil, err
	}

	date, clock := dosDateTime(modified)
	h := fileHeader{
		name:    name,
		flags:   flagDataDescriptor,
		modTime: clock,
		modDate: date,
		offset:  uint32(zw.w.n),
	}
	if err := zw.write(h.local()); err != nil {
		return nil, err
	}
	zw.current = &entryWriter{zw: zw, header: h, crc: crc32.NewIEEE()}
	return zw.current, nil
}

// Close finishes the open entry and writes the central directory and the
// end-of-central-directory record. It does not close the underlying writer.
func (zw *Writer) Close() error {
	if zw.closed {
		return ErrWriterClosed
	}
	if err := zw.finishEntry(); err != nil {
		return err
	}
	zw.closed = true

	dirOffset := zw.w.n
	for _, h := range zw.dir {
		if err := zw.write(h.central()); err != nil {
			return err
		}
	}
	dirSize := zw.w.n - dirOffset
	if dirOffset > maxUint32 || dirSize > maxUint32 {
		return ErrTooLarge
	}
	return zw.write(endOfCentralDirectory(len(zw.dir), uint32(dirSize), uint32(dirOffset)))
}

func (zw *Writer) prepare(name string) error {
	if zw.closed {
		return ErrWriterClosed
	}
	if err := zw.finishEntry(); err != nil {
		return err
	}
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxUint16 || len(zw.dir) >= maxUint16 || zw.w.n > maxUint32 {
		return ErrTooLarge
	}
	return nil
}

func (zw *Writer) finishEntry() error {
	if zw.err != nil {
		return zw.err
	}
	e := zw.current
	if e == nil {
		return nil
	}
	zw.current = nil
	e.closed = true

	e.header.crc32 = e.crc.Sum32()
	e.header.size = uint32(e.size)
	if err := zw.write(e.header.dataDescriptor()); err != nil {
		return err
	}
	zw.dir = append(zw.dir, e.header)
	return nil
}

// write keeps the first error sticky: once the sink fails, the container is
// unrecoverable.
func (zw *Writer) write(p []byte) error {
	if zw.err != nil {
		return zw.err
	}
	if _, err := zw.w.Write(p); err != nil {
		zw.err = err
		return err
	}
	return nil
}

type entryWriter struct {
	zw     *Writer
	header fileHeader
	crc    hash.Hash32
	size   int64
	closed bool
}

func (e *entryWriter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrWriterClosed
	}
	if e.zw.err != nil {
		return 0, e.zw.err
	}
	if e.size+int64(len(p)) > maxUint32 {
		return 0, ErrTooLarge
	}
	n, err := e.zw.w.Write(p)
	e.crc.Write(p[:n])
	e.size += int64(n)
	if err != nil {
		e.zw.err = err
	}
	return n, err
}
