// Package dir implements the Directory store: Blobary's persistent backend.
// A store directory holds one regular file per installed blob (named by the
// blob's hex digest) plus a ".index" file, an append-only log of fixed
// 40-byte records that gives the store its stable, crash-recoverable id
// ordering (spec §4.3, §4.5).
package dir

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/apex/log"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/artob/blobary/internal/funchelpers"
	"github.com/artob/blobary/internal/iohelpers"
	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
	"github.com/artob/blobary/pkg/blobstore/record"
	"github.com/artob/blobary/pkg/digest"
	"github.com/artob/blobary/pkg/filter"
	"github.com/artob/blobary/pkg/hasher"
)

// indexFileName is the name of the append-only index file inside a store
// directory.
const indexFileName = ".index"

// Option configures Open.
type Option func(*config)

type config struct {
	readOnly bool
	filters  filter.Chain
}

// WithReadOnly opens the store read-only: Put and Remove fail with
// blobaryerr.NotWritable.
func WithReadOnly() Option {
	return func(c *config) { c.readOnly = true }
}

// WithFilters installs an ordered filter chain (spec §4.10) applied around
// on-disk blob content. The default, with no options, is an empty chain
// (no filtering).
func WithFilters(filters ...filter.Filter) Option {
	return func(c *config) { c.filters = filter.Chain(filters) }
}

// Store is the on-disk, persistent BlobStore/IndexedBlobStore backend.
//
// It is not safe for concurrent use from multiple goroutines, nor from
// multiple processes against the same directory (spec §5): callers must
// serialize their own access.
type Store struct {
	path     string
	readOnly bool
	filters  filter.Chain

	indexFile *os.File
	records   []record.Record
	hashToID  map[digest.Digest]int64
}

var _ blobstore.IndexedBlobStore = (*Store)(nil)

// Open opens (creating if necessary and writable) the Directory store at
// path, replaying ".index" to rebuild the digest-to-id map (spec §4.5).
func Open(path string, opts ...Option) (*Store, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, blobaryerr.Wrap(err, blobaryerr.IO, "create store directory")
			}
		}
	}

	indexPath, err := securejoin.SecureJoin(path, indexFileName)
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "resolve index path")
	}

	flags := os.O_RDONLY
	if !cfg.readOnly {
		flags = os.O_RDWR | os.O_CREATE
	}
	indexFile, err := os.OpenFile(indexPath, flags, 0o644)
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "open index file")
	}

	s := &Store{
		path:      path,
		readOnly:  cfg.readOnly,
		filters:   cfg.filters,
		indexFile: indexFile,
		hashToID:  map[digest.Digest]int64{},
	}
	if err := s.loadIndex(); err != nil {
		indexFile.Close()
		return nil, err
	}

	log.WithField("path", path).WithField("count", len(s.records)).Debug("dir: opened store")
	return s, nil
}

// loadIndex replays the index file from byte 0, rebuilding s.records and
// s.hashToID. An UnexpectedEof after a partial 40-byte read (a torn write)
// aborts with blobaryerr.IO.
func (s *Store) loadIndex() error {
	if _, err := s.indexFile.Seek(0, io.SeekStart); err != nil {
		return blobaryerr.Wrap(err, blobaryerr.IO, "seek index file")
	}

	buf := make([]byte, record.Size)
	for id := int64(1); ; id++ {
		_, err := io.ReadFull(s.indexFile, buf)
		switch {
		case err == io.EOF:
			return nil
		case err == io.ErrUnexpectedEOF:
			return blobaryerr.Wrap(err, blobaryerr.IO, "torn index record (truncated file)")
		case err != nil:
			return blobaryerr.Wrap(err, blobaryerr.IO, "read index record")
		}

		rec, err := record.Decode(buf)
		if err != nil {
			return blobaryerr.Wrap(err, blobaryerr.IO, "decode index record")
		}
		s.records = append(s.records, rec)
		s.hashToID[rec.Digest] = id
	}
}

// Count implements blobstore.BlobStore.
func (s *Store) Count(_ context.Context) (int64, error) {
	return int64(len(s.records)), nil
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
	if id < 1 || int(id) > len(s.records) {
		return digest.Digest{}, false, nil
	}
	return s.records[id-1].Digest, true, nil
}

// GetByHash implements blobstore.BlobStore. It returns (nil, nil) if d is
// not present. Note that a digest evicted by Remove is simply absent here,
// even though its index slot still exists (see GetByID).
func (s *Store) GetByHash(ctx context.Context, d digest.Digest) (*blobstore.Handle, error) {
	id, ok := s.hashToID[d]
	if !ok {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// GetByID implements blobstore.IndexedBlobStore. If id is in range but the
// slot's content file is gone (because Remove deleted it while leaving the
// index record in place), it returns a blobaryerr.Removed error.
func (s *Store) GetByID(_ context.Context, id int64) (*blobstore.Handle, error) {
	if id < 1 || int(id) > len(s.records) {
		return nil, nil
	}
	rec := s.records[id-1]

	blobPath, err := securejoin.SecureJoin(s.path, record.FileName(rec.Digest))
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "resolve blob path")
	}

	f, err := os.Open(blobPath)
	if os.IsNotExist(err) {
		return nil, blobaryerr.New(blobaryerr.Removed)
	}
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "open blob file")
	}

	if len(s.filters) == 0 {
		return blobstore.NewHandleWithStream(id, rec.Digest, int64(rec.Size), f, f), nil
	}
	return s.decodeToHandle(id, rec, f)
}

// Put implements blobstore.BlobStore, per the directory store's reference
// `put` algorithm (spec §4.3):
//
//  1. reject on a read-only store
//  2. write the input to a temp file in the same directory (so the later
//     rename is atomic)
//  3. hash the now-fully-written temp file in a single memory-mapped pass
//  4. de-duplicate against the in-memory digest map
//  5. rename the temp file into place under its hex digest, mode 0444
//  6. append the 40-byte index record and fsync -- this is the commit point
func (s *Store) Put(_ context.Context, r io.Reader) (created bool, h *blobstore.Handle, err error) {
	if s.readOnly {
		return false, nil, blobaryerr.New(blobaryerr.NotWritable)
	}

	if len(s.filters) > 0 {
		return s.putFiltered(r)
	}
	return s.putRaw(r)
}

func (s *Store) putRaw(r io.Reader) (bool, *blobstore.Handle, error) {
	tmpPath, tmpFile, err := s.createTemp()
	if err != nil {
		return false, nil, err
	}

	counted := iohelpers.CountReader(r)
	if _, err := io.Copy(tmpFile, counted); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "write temp blob")
	}
	size := counted.BytesRead()

	return s.commitTemp(tmpPath, tmpFile, size)
}

// putFiltered is putRaw's counterpart when a filter chain is installed: the
// content is encoded before it ever touches disk, so the digest (and the
// de-duplication it drives) is computed over the post-encode bytes.
func (s *Store) putFiltered(r io.Reader) (bool, *blobstore.Handle, error) {
	tmpPath, tmpFile, err := s.createTemp()
	if err != nil {
		return false, nil, err
	}

	size, err := s.filters.Encode(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "encode+write temp blob")
	}

	return s.commitTemp(tmpPath, tmpFile, size)
}

func (s *Store) createTemp() (string, *os.File, error) {
	tmpName := "tmp-" + uuid.New().String()
	tmpPath, err := securejoin.SecureJoin(s.path, tmpName)
	if err != nil {
		return "", nil, blobaryerr.Wrap(err, blobaryerr.IO, "resolve temp path")
	}
	tmpFile, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", nil, blobaryerr.Wrap(err, blobaryerr.IO, "create temp blob")
	}
	return tmpPath, tmpFile, nil
}

func (s *Store) commitTemp(tmpPath string, tmpFile *os.File, size int64) (created bool, h *blobstore.Handle, err error) {
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "sync temp blob")
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "close temp blob")
	}

	hsh := hasher.New()
	if _, err := hsh.AbsorbFile(tmpPath); err != nil {
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "hash temp blob")
	}
	dgst := hsh.Finalize()

	if id, ok := s.hashToID[dgst]; ok {
		os.Remove(tmpPath)
		return false, blobstore.NewHandle(id, dgst, int64(s.records[id-1].Size)), nil
	}

	if err := os.Chmod(tmpPath, 0o444); err != nil {
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "chmod blob read-only")
	}

	finalPath, err := securejoin.SecureJoin(s.path, record.FileName(dgst))
	if err != nil {
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "resolve blob path")
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "rename temp blob into place")
	}

	rec := record.Record{Digest: dgst, Size: uint64(size)}
	if _, err := s.indexFile.Write(rec.Bytes()); err != nil {
		// The content file is already committed; an orphaned blob file is
		// acceptable (reclaimable), a dangling index entry is not -- so a
		// record we failed to write in full is cut back off the index.
		end := int64(len(s.records)) * record.Size
		if terr := s.indexFile.Truncate(end); terr == nil {
			_, _ = s.indexFile.Seek(end, io.SeekStart)
		}
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "append index record")
	}
	if err := s.indexFile.Sync(); err != nil {
		return false, nil, blobaryerr.Wrap(err, blobaryerr.IO, "fsync index")
	}

	id := int64(len(s.records)) + 1
	s.records = append(s.records, rec)
	s.hashToID[dgst] = id

	return true, blobstore.NewHandle(id, dgst, size), nil
}

// Remove implements blobstore.BlobStore: it evicts the digest from the
// in-memory map and unlinks the content file, but never rewrites the index
// -- the ordinal slot is preserved (spec §4.3).
func (s *Store) Remove(_ context.Context, d digest.Digest) (bool, error) {
	if s.readOnly {
		return false, blobaryerr.New(blobaryerr.NotWritable)
	}

	if _, ok := s.hashToID[d]; !ok {
		return false, nil
	}
	delete(s.hashToID, d)

	blobPath, err := securejoin.SecureJoin(s.path, record.FileName(d))
	if err != nil {
		return true, blobaryerr.Wrap(err, blobaryerr.IO, "resolve blob path")
	}
	if err := os.Remove(blobPath); err != nil && !os.IsNotExist(err) {
		return true, blobaryerr.Wrap(err, blobaryerr.IO, "remove blob file")
	}
	return true, nil
}

// Close implements blobstore.BlobStore.
func (s *Store) Close() (err error) {
	defer funchelpers.VerifyClose(&err, s.indexFile)
	return nil
}

func (s *Store) decodeToHandle(id int64, rec record.Record, f *os.File) (*blobstore.Handle, error) {
	defer f.Close()
	var buf bytes.Buffer
	n, err := s.filters.Decode(&buf, f)
	if err != nil {
		return nil, blobaryerr.Wrap(err, blobaryerr.IO, "decode blob content")
	}
	return blobstore.NewHandleWithStream(id, rec.Digest, n, bytes.NewReader(buf.Bytes()), nil), nil
}
