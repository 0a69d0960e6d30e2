// Package ephemeral implements the Ephemeral store: a process-local,
// in-memory BlobStore with the same id and digest semantics as the
// directory store but none of its durability.
//
// Per the resolved Open Question in SPEC_FULL.md §9, Remove tombstones a
// slot rather than shifting later ids down to fill the gap: the directory
// store cannot renumber its append-only index without rewriting it, so the
// ephemeral store deliberately mirrors that behavior instead of the denser
// but id-unstable alternative. This keeps id stability -- and therefore the
// replicator and Iterator contracts -- identical across both backends.
package ephemeral

import (
	"bytes"
	"context"
	"io"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
	"github.com/artob/blobary/pkg/digest"
	"github.com/artob/blobary/pkg/filter"
	"github.com/artob/blobary/pkg/hasher"
)

// slot is one entry of the store's id-ordered record list. A tombstoned
// slot keeps its digest and size (so IDToHash and Count still see it) but
// its content is gone.
type slot struct {
	digest  digest.Digest
	size    int64
	content []byte
	removed bool
}

// Store is the in-memory BlobStore/IndexedBlobStore backend. Like the
// directory store, it is not safe for concurrent use (spec §5).
type Store struct {
	filters  filter.Chain
	slots    []slot
	hashToID map[digest.Digest]int64
}

var _ blobstore.IndexedBlobStore = (*Store)(nil)

// Option configures New.
type Option func(*Store)

// WithFilters installs an ordered filter chain (spec §4.10), applied the
// same way the directory store applies one: Encode on the way in, Decode
// on the way out, digest computed over the post-encode bytes.
func WithFilters(filters ...filter.Filter) Option {
	return func(s *Store) { s.filters = filter.Chain(filters) }
}

// New returns an empty Ephemeral store.
func New(opts ...Option) *Store {
	s := &Store{hashToID: map[digest.Digest]int64{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Count implements blobstore.BlobStore.
func (s *Store) Count(_ context.Context) (int64, error) {
	return int64(len(s.slots)), nil
}

// ContainsHash implements blobstore.BlobStore.
func (s *Store) ContainsHash(_ context.Context, d digest.Digest) (bool, error) {
	_, ok := s.hashToID[d]
	return ok, nil
}

// HashToID implements blobstore.IndexedBlobStore.
func (s *Store) HashToID(_ context.Context, d digest.Digest) (int64, bool, error) {
	id, ok := s.hashToID[d]
	return id, ok, nil
}

// IDToHash implements blobstore.IndexedBlobStore.
func (s *Store) IDToHash(_ context.Context, id int64) (digest.Digest, bool, error) {
	if id < 1 || int(id) > len(s.slots) {
		return digest.Digest{}, false, nil
	}
	return s.slots[id-1].digest, true, nil
}

// GetByHash implements blobstore.BlobStore.
func (s *Store) GetByHash(ctx context.Context, d digest.Digest) (*blobstore.Handle, error) {
	id, ok := s.hashToID[d]
	if !ok {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// GetByID implements blobstore.IndexedBlobStore.
func (s *Store) GetByID(_ context.Context, id int64) (*blobstore.Handle, error) {
	if id < 1 || int(id) > len(s.slots) {
		return nil, nil
	}
	sl := s.slots[id-1]
	if sl.removed {
		return nil, blobaryerr.New(blobaryerr.Removed)
	}

	if len(s.filters) == 0 {
		return blobstore.NewHandleWithStream(id, sl.digest, sl.size, bytes.NewReader(sl.content), nil), nil
	}

	var decoded bytes.Buffer
	n, err := s.filters.Decode(&decoded, bytes.NewReader(sl.content))
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "decode blob content")
	}
	return blobstore.NewHandleWithStream(id, sl.digest, n, bytes.NewReader(decoded.Bytes()), nil), nil
}

// Put implements blobstore.BlobStore.
func (s *Store) Put(_ context.Context, r io.Reader) (bool, *blobstore.Handle, error) {
	var raw bytes.Buffer
	if len(s.filters) == 0 {
		if _, err := io.Copy(&raw, r); err != nil {
			return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "read input")
		}
	} else {
		if _, err := s.filters.Encode(&raw, r); err != nil {
			return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "encode input")
		}
	}
	content := raw.Bytes()

	h := hasher.New()
	if _, err := h.Write(content); err != nil {
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "hash input")
	}
	dgst := h.Finalize()

	if id, ok := s.hashToID[dgst]; ok {
		return false, blobstore.NewHandle(id, dgst, s.slots[id-1].size), nil
	}

	id := int64(len(s.slots)) + 1
	s.slots = append(s.slots, slot{digest: dgst, size: int64(len(content)), content: content})
	s.hashToID[dgst] = id

	return true, blobstore.NewHandle(id, dgst, int64(len(content))), nil
}

// Remove implements blobstore.BlobStore: it evicts the digest from the
// lookup map and tombstones the slot, discarding its content but keeping
// its digest and size on record so Count, IDToHash, and the Iterator all
// continue to see a (now-Removed) slot at the same id.
func (s *Store) Remove(_ context.Context, d digest.Digest) (bool, error) {
	id, ok := s.hashToID[d]
	if !ok {
		return false, nil
	}
	delete(s.hashToID, d)

	sl := &s.slots[id-1]
	sl.removed = true
	sl.content = nil

	return true, nil
}

// Close implements blobstore.BlobStore. The ephemeral store holds no
// external resources, so Close is a no-op.
func (s *Store) Close() error {
	return nil
}
