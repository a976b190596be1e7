package archive

import (
	"encoding/binary"
	"time"
)

const (
	localFileHeaderSignature  = 0x04034b50
	centralDirectorySignature = 0x02014b50
	endOfCentralDirSignature  = 0x06054b50
	dataDescriptorSignature   = 0x08074b50

	localFileHeaderLen  = 30
	centralDirectoryLen = 46
	endOfCentralDirLen  = 22
	dataDescriptorLen   = 16

	zipVersion  = 20
	methodStore = 0

	// flagDataDescriptor marks entries whose CRC and sizes follow the data.
	flagDataDescriptor = 0x0008

	maxUint16 = 1<<16 - 1
	maxUint32 = 1<<32 - 1
)

// fileHeader holds the per-entry fields shared by the local header and the
// central directory record.
type fileHeader struct {
	name    string
	flags   uint16
	modTime uint16
	modDate uint16
	crc32   uint32
	size    uint32
	offset  uint32
}

func (h fileHeader) local() []byte {
	b := make([]byte, localFileHeaderLen+len(h.name))
	le := binary.LittleEndian
	le.PutUint32(b[0:], localFileHeaderSignature)
	le.PutUint16(b[4:], zipVersion)
	le.PutUint16(b[6:], h.flags)
	le.PutUint16(b[8:], methodStore)
	le.PutUint16(b[10:], h.modTime)
	le.PutUint16(b[12:], h.modDate)
	le.PutUint32(b[14:], h.crc32)
	le.PutUint32(b[18:], h.size)
	le.PutUint32(b[22:], h.size)
	le.PutUint16(b[26:], uint16(len(h.name)))
	le.PutUint16(b[28:], 0)
	copy(b[localFileHeaderLen:], h.name)
	return b
}

func (h fileHeader) central() []byte {
	b := make([]byte, centralDirectoryLen+len(h.name))
	le := binary.LittleEndian
	le.PutUint32(b[0:], centralDirectorySignature)
	le.PutUint16(b[4:], zipVersion)
	le.PutUint16(b[6:], zipVersion)
	le.PutUint16(b[8:], h.flags)
	le.PutUint16(b[10:], methodStore)
	le.PutUint16(b[12:], h.modTime)
	le.PutUint16(b[14:], h.modDate)
	le.PutUint32(b[16:], h.crc32)
	le.PutUint32(b[20:], h.size)
	le.PutUint32(b[24:], h.size)
	le.PutUint16(b[28:], uint16(len(h.name)))
	// extra length, comment length, disk number start, internal and
	// external attributes stay zero.
	le.PutUint32(b[42:], h.offset)
	copy(b[centralDirectoryLen:], h.name)
	return b
}

func (h fileHeader) dataDescriptor() []byte {
	b := make([]byte, dataDescriptorLen)
	le := binary.LittleEndian
	le.PutUint32(b[0:], dataDescriptorSignature)
	le.PutUint32(b[4:], h.crc32)
	le.PutUint32(b[8:], h.size)
	le.PutUint32(b[12:], h.size)
	return b
}

func endOfCentralDirectory(entries int, dirSize, dirOffset uint32) []byte {
	b := make([]byte, endOfCentralDirLen)
	le := binary.LittleEndian
	le.PutUint32(b[0:], endOfCentralDirSignature)
	// disk numbers are zero: single-disk archives only
	le.PutUint16(b[8:], uint16(entries))
	le.PutUint16(b[10:], uint16(entries))
	le.PutUint32(b[12:], dirSize)
	le.PutUint32(b[16:], dirOffset)
	return b
}

// dosDateTime packs t into MS-DOS date and time fields. The year field is
// clamped at 0 (1980) instead of underflowing and at 127 (2107) instead of
// overflowing. Times are taken in UTC so output does not depend on the
// server's zone.
func dosDateTime(t time.Time) (date, clock uint16) {
	t = t.UTC()
	year := t.Year() - 1980
	if year < 0 {
		year = 0
	}
	if year > 127 {
		year = 127
	}
	date = uint16(year<<9 | int(t.Month())<<5 | t.Day())
	clock = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	return date, clock
}
