// Package record implements the fixed 40-byte on-disk index record that
// backs the directory store's append-only ".index" file, and the blob
// file-naming convention derived from a digest.
package record

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/artob/blobary/pkg/digest"
)

// Size is the length, in bytes, of one index record: a 32-byte digest
// followed by an 8-byte big-endian size.
const Size = digest.Size + 8

// Record is one entry of the append-only index file. Record N occupies
// bytes N*Size .. (N+1)*Size of the index file; ids are 1-based, with
// id = record_offset/Size + 1.
type Record struct {
	Digest digest.Digest
	Size   uint64
}

// Encode writes r's packed, network-byte-order representation into buf,
// which must be at least Size bytes long.
func (r Record) Encode(buf []byte) {
	copy(buf[:digest.Size], r.Digest[:])
	binary.BigEndian.PutUint64(buf[digest.Size:Size], r.Size)
}

// Bytes returns r's packed Size-byte representation.
func (r Record) Bytes() []byte {
	buf := make([]byte, Size)
	r.Encode(buf)
	return buf
}

// Decode parses a Size-byte buffer into a Record.
func Decode(buf []byte) (Record, error) {
	if len(buf) != Size {
		return Record{}, errors.Errorf("record: buffer is %d bytes, want %d", len(buf), Size)
	}
	var r Record
	copy(r.Digest[:], buf[:digest.Size])
	r.Size = binary.BigEndian.Uint64(buf[digest.Size:Size])
	return r, nil
}

// FileName returns the blob file name for d: its 64-character canonical hex
// encoding. No subdirectory sharding is used.
func FileName(d digest.Digest) string {
	return d.String()
}

// IDForOffset returns the 1-based id of the record occupying byte offset
// off of the index file. off must be a multiple of Size.
func IDForOffset(off int64) int64 {
	return off/Size + 1
}

// OffsetForID returns the byte offset of the (1-based) id'th record in the
// index file.
func OffsetForID(id int64) int64 {
	return (id - 1) * Size
}
