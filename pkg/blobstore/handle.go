package blobstore

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/artob/blobary/pkg/digest"
)

// sharedStream is the reference-counted open stream behind a Handle. The
// concurrency model (spec §5) is single-threaded and synchronous, so no
// locking is needed: Clone/Close are only ever called serially.
type sharedStream struct {
	file   io.ReadSeeker
	closer io.Closer
	refs   int
}

// Handle is a value returned from store operations: a store-local id, the
// blob's digest and size, and optionally an open, seekable stream over its
// content.
//
// When a stream is present it is shared by reference count: Clone returns a
// new Handle over the same underlying stream and bumps the count, and Close
// only closes the underlying stream once the last reference drops it. This
// lets more than one consumer hold a Handle to the same open file
// sequentially without either one yanking it out from under the other.
type Handle struct {
	ID     int64
	Digest digest.Digest
	Size   int64

	stream *sharedStream
}

// String renders h as "<id> <digest> (<human-size>)", used in the
// replicator's per-blob log line.
func (h *Handle) String() string {
	return fmt.Sprintf("%d %s (%s)", h.ID, h.Digest, humanize.Bytes(uint64(h.Size)))
}

// NewHandle constructs a Handle with no open stream.
func NewHandle(id int64, d digest.Digest, size int64) *Handle {
	return &Handle{ID: id, Digest: d, Size: size}
}

// NewHandleWithStream constructs a Handle owning the given stream. closer,
// if non-nil, is invoked (at most once) when the last reference to the
// stream is released; pass the same value as stream when it implements
// io.Closer, or nil if the stream has nothing to close.
func NewHandleWithStream(id int64, d digest.Digest, size int64, stream io.ReadSeeker, closer io.Closer) *Handle {
	return &Handle{
		ID:     id,
		Digest: d,
		Size:   size,
		stream: &sharedStream{file: stream, closer: closer, refs: 1},
	}
}

// Stream returns the handle's open, seekable stream (rewound to byte 0 by
// the backend that created it) and true, or (nil, false) if this Handle
// carries no stream.
func (h *Handle) Stream() (io.ReadSeeker, bool) {
	if h.stream == nil {
		return nil, false
	}
	return h.stream.file, true
}

// Clone returns a new Handle sharing this one's stream (if any), bumping
// its reference count. The clone must itself be Close()d independently.
func (h *Handle) Clone() *Handle {
	if h.stream != nil {
		h.stream.refs++
	}
	return &Handle{ID: h.ID, Digest: h.Digest, Size: h.Size, stream: h.stream}
}

// Close releases this Handle's reference to its stream. Once the last
// reference is released, the underlying stream is closed. Close is a no-op
// on a Handle with no stream.
func (h *Handle) Close() error {
	if h.stream == nil {
		return nil
	}
	h.stream.refs--
	if h.stream.refs > 0 {
		return nil
	}
	if h.stream.closer == nil {
		return nil
	}
	return h.stream.closer.Close()
}
