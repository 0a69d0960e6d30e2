// Package blobstore defines the abstract contract every Blobary backend
// (directory, ephemeral, and — out of CORE scope — remote) honors, plus the
// Iterator that walks an IndexedBlobStore in id order.
package blobstore

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/digest"
)

// BlobStore is the contract every backend exposes (spec §4.3): count,
// hash-based lookup, put, and remove.
type BlobStore interface {
	// Count returns the number of index slots, including removed ones.
	Count(ctx context.Context) (int64, error)

	// ContainsHash reports whether d is present (and not removed).
	ContainsHash(ctx context.Context, d digest.Digest) (bool, error)

	// GetByHash returns the Handle for d, or (nil, nil) if absent. If the
	// index records d but its content is gone, it returns a
	// blobaryerr.Removed error.
	GetByHash(ctx context.Context, d digest.Digest) (*Handle, error)

	// Put consumes r, hashing and installing its content. created is true
	// iff this call is the one that added the digest (a duplicate put
	// returns the existing Handle with created=false).
	Put(ctx context.Context, r io.Reader) (created bool, h *Handle, err error)

	// Remove evicts d. existed reports whether it was present before the
	// call; removing an absent digest is not an error.
	Remove(ctx context.Context, d digest.Digest) (existed bool, err error)

	// Close releases resources held by the store.
	Close() error
}

// IndexedBlobStore is a BlobStore with a stable, stable-ordered id space
// (spec §4.4). The directory and ephemeral stores both implement it;
// content-addressed remote backends need not.
type IndexedBlobStore interface {
	BlobStore

	// HashToID returns the id assigned to d, if present.
	HashToID(ctx context.Context, d digest.Digest) (int64, bool, error)

	// IDToHash returns the digest recorded at id, if id is in range.
	IDToHash(ctx context.Context, id int64) (digest.Digest, bool, error)

	// GetByID returns the Handle at id. If id is in range but the slot's
	// content has been removed, it returns a blobaryerr.Removed error.
	GetByID(ctx context.Context, id int64) (*Handle, error)
}

// PutBytes is a helper expressible purely in terms of Put (spec §4.3).
func PutBytes(ctx context.Context, s BlobStore, b []byte) (bool, *Handle, error) {
	return s.Put(ctx, strings.NewReader(string(b)))
}

// PutString is a helper expressible purely in terms of Put.
func PutString(ctx context.Context, s BlobStore, str string) (bool, *Handle, error) {
	return s.Put(ctx, strings.NewReader(str))
}

// PutFile opens path and puts its contents.
func PutFile(ctx context.Context, s BlobStore, path string) (bool, *Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "open file to put")
	}
	defer f.Close()
	return s.Put(ctx, f)
}

// Iterator walks an IndexedBlobStore's ids 1..=count, in order, skipping
// slots whose content has been removed. It captures count at construction
// time: blobs put after that point are not observed (spec §4.7).
type Iterator struct {
	store IndexedBlobStore
	count int64
	next  int64
}

// NewIterator constructs an Iterator over store, snapshotting its current
// Count().
func NewIterator(ctx context.Context, store IndexedBlobStore) (*Iterator, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Iterator{store: store, count: n, next: 1}, nil
}

// Next returns the next non-removed Handle, or ok=false once the snapshot
// is exhausted. Any failure other than "removed" is fatal and returned.
func (it *Iterator) Next(ctx context.Context) (h *Handle, ok bool, err error) {
	for it.next <= it.count {
		id := it.next
		it.next++

		h, err := it.store.GetByID(ctx, id)
		if err != nil {
			if kind, isBlobaryErr := blobaryerr.Of(err); isBlobaryErr && kind == blobaryerr.Removed {
				continue
			}
			return nil, false, err
		}
		return h, true, nil
	}
	return nil, false, nil
}

// Count returns the snapshot count captured at construction time.
func (it *Iterator) Count() int64 {
	return it.count
}
