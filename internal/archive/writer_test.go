package archive_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-studio-backend/internal/archive"
)

func TestWriter_StreamedEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := archive.NewWriter(&buf)

	w, err := zw.CreateEntry("first.jpg", shotAt)
	require.NoError(t, err)
	_, err = w.Write([]byte("chunk-1 "))
	require.NoError(t, err)
	_, err = w.Write([]byte("chunk-2"))
	require.NoError(t, err)

	w, err = zw.CreateEntry("second.jpg", shotAt)
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("z"), 70000))
	require.NoError(t, err)

	require.NoError(t, zw.WriteEntry("third.jpg", shotAt, []byte("inline")))
	require.NoError(t, zw.Close())

	got := readZip(t, buf.Bytes())
	assert.Equal(t, "chunk-1 chunk-2", string(got["first.jpg"]))
	assert.Len(t, got["second.jpg"], 70000)
	assert.Equal(t, "inline", string(got["third.jpg"]))
	assert.Equal(t, []string{"first.jpg", "second.jpg", "third.jpg"}, zipNames(t, buf.Bytes()))
}

func TestWriter_DataDescriptor(t *testing.T) {
	var buf bytes.Buffer
	zw := archive.NewWriter(&buf)

	w, err := zw.CreateEntry("d", shotAt)
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out := buf.Bytes()
	le := binary.LittleEndian
	assert.Equal(t, uint16(0x0008), le.Uint16(out[6:]))
	assert.Equal(t, uint32(0), le.Uint32(out[14:]), "crc is deferred")

	desc := out[30+1+3:]
	assert.Equal(t, uint32(0x08074b50), le.Uint32(desc[0:]))
	assert.Equal(t, crc32.ChecksumIEEE([]byte("abc")), le.Uint32(desc[4:]))
	assert.Equal(t, uint32(3), le.Uint32(desc[8:]))
	assert.Equal(t, uint32(3), le.Uint32(desc[12:]))
}

func TestWriter_ClosedWriter(t *testing.T) {
	var buf bytes.Buffer
	zw := archive.NewWriter(&buf)

	w, err := zw.CreateEntry("a", shotAt)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, archive.ErrWriterClosed)
	assert.ErrorIs(t, zw.Close(), archive.ErrWriterClosed)
	_, err = zw.CreateEntry("b", shotAt)
	assert.ErrorIs(t, err, archive.ErrWriterClosed)
}

func TestWriter_PreviousEntryClosed(t *testing.T) {
	var buf bytes.Buffer
	zw := archive.NewWriter(&buf)

	first, err := zw.CreateEntry("a", shotAt)
	require.NoError(t, err)
	_, err = zw.CreateEntry("b", shotAt)
	require.NoError(t, err)

	_, err = first.Write([]byte("x"))
	assert.ErrorIs(t, err, archive.ErrWriterClosed)
	assert.Equal(t, 2, zw.Entries())
}

type failingWriter struct {
	limit int
	n     int
}

var errSinkGone = errors.New("sink gone")

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n+len(p) > f.limit {
		return 0, errSinkGone
	}
	f.n += len(p)
	return len(p), nil
}

func TestWriter_SinkErrorIsSticky(t *testing.T) {
	zw := archive.NewWriter(&failingWriter{limit: 40})

	w, err := zw.CreateEntry("a", shotAt)
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 64))
	require.ErrorIs(t, err, errSinkGone)

	assert.ErrorIs(t, zw.Close(), errSinkGone)
}
