// Package hasher implements the streaming digest accumulator used by every
// blob store backend to compute a blob's content digest as it is written or
// read.
package hasher

import (
	"hash"
	"io"

	"golang.org/x/exp/mmap"
	"lukechampine.com/blake3"

	"github.com/artob/blobary/internal/assert"
	"github.com/artob/blobary/pkg/digest"
)

// Hasher accumulates a digest.Digest over a byte stream. It implements
// io.Writer so it can be used directly with io.Copy or io.MultiWriter. (The
// directory store does not hash while writing: it writes the temp file
// first and then hashes it with AbsorbFile.)
//
// A Hasher must not be used after Finalize is called.
type Hasher struct {
	h    hash.Hash
	done bool
}

// New returns an empty Hasher, ready to absorb input.
func New() *Hasher {
	return &Hasher{h: blake3.New(digest.Size, nil)}
}

// Write absorbs p into the running digest. It never returns an error; per
// hash.Hash's contract, writes to a BLAKE3 hasher cannot fail.
func (h *Hasher) Write(p []byte) (int, error) {
	assert.Assert(!h.done, "hasher: Write after Finalize")
	return h.h.Write(p)
}

// AbsorbFile absorbs the entire contents of the file at path by memory
// mapping it and hashing the mapped bytes in a single pass. This is the
// preferred way to hash a large local file: the kernel faults pages in on
// demand. The mapped bytes are fed to the hash through io.Copy's buffer.
func (h *Hasher) AbsorbFile(path string) (int64, error) {
	assert.Assert(!h.done, "hasher: AbsorbFile after Finalize")

	r, err := mmap.Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	return io.Copy(h.h, io.NewSectionReader(r, 0, int64(r.Len())))
}

// Finalize consumes the Hasher and returns the accumulated digest. The
// Hasher must not be used afterwards.
func (h *Hasher) Finalize() digest.Digest {
	assert.Assert(!h.done, "hasher: Finalize called twice")
	h.done = true

	var d digest.Digest
	copy(d[:], h.h.Sum(nil))
	return d
}
